// Package discovery implements mDNS/DNS-SD discovery of TORQBUS bridges.
//
// A bridge advertises the _torqbus._tcp service on the local network.
// Instance name format: TORQBUS-<bridge name>
// TXT records include: nm (bridge name), br (bus bitrate in bit/s),
// and optionally fw (bridge firmware version) and ch (bus channel).
//
// Browsing aggregates entries by instance name so that addresses seen
// on multiple interfaces are combined into a single BridgeService.
package discovery
