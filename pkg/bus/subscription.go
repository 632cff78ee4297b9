package bus

import "github.com/torqbus-protocol/torqbus-go/pkg/wire"

// Subscription is a handle to a registered broadcast handler.
type Subscription struct {
	session *Session
	msgType wire.MessageType
	id      int
	active  bool
}

// Subscribe registers handler for broadcast frames of the given type and
// returns a handle used to cancel it. Multiple handlers may be registered
// for the same type.
func (s *Session) Subscribe(msgType wire.MessageType, handler HandlerFunc) *Subscription {
	s.nextSubID++
	id := s.nextSubID
	handlers := s.subs[msgType]
	if handlers == nil {
		handlers = make(map[int]HandlerFunc)
		s.subs[msgType] = handlers
	}
	handlers[id] = handler
	return &Subscription{session: s, msgType: msgType, id: id, active: true}
}

// Cancel removes the handler. Safe to call from within the handler itself
// and safe to call more than once.
func (sub *Subscription) Cancel() {
	if !sub.active {
		return
	}
	sub.active = false
	handlers := sub.session.subs[sub.msgType]
	delete(handlers, sub.id)
	if len(handlers) == 0 {
		delete(sub.session.subs, sub.msgType)
	}
}

// Active reports whether the subscription is still registered.
func (sub *Subscription) Active() bool { return sub.active }
