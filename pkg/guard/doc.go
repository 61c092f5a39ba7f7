// Package guard keeps a Pion WebRTC endpoint from disclosing the local or
// public address of the machine it runs on while traffic is meant to go
// through a proxy, VPN or TURN relay.
//
// A Guard decorates the native peer-connection factory. Connections created
// through it differ from native ones in exactly two ways:
//
//  1. The configuration is deep-copied, ICECandidatePoolSize is forced to 0
//     and ICE servers without a turn: or turns: URL are dropped.
//  2. CreateOffer, CreateAnswer and the local-description getters strip every
//     "a=candidate:" line mentioning a host or mDNS candidate.
//
// # Quick Start
//
//	api, err := guard.NewAPI(guard.WithAPILogger(logger))
//	if err != nil {
//	    return err
//	}
//
//	g, err := guard.New(api, guard.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//
//	pc, err := g.NewPeerConnection(&webrtc.Configuration{
//	    ICEServers: []webrtc.ICEServer{
//	        {URLs: []string{"stun:stun.example.com"}},             // dropped
//	        {URLs: []string{"turn:turn.example.com"}, Username: "u", Credential: "p"},
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//
//	offer, err := pc.CreateOffer(nil) // no host candidates
//
// The returned *PeerConnection embeds *webrtc.PeerConnection, so code written
// against the native type keeps working after changing the constructor call.
//
// # Policy
//
// Dropping every discovery server can leave a connection without any ICE
// server. FallbackStrict (the default) accepts that and logs a warning;
// FallbackKeepDiscovery restores the discovery servers when no relay is
// configured. WithRelayOnly additionally sets the relay transport policy.
//
// # Limits
//
// Redaction works on the text of the session description. It does not stop
// the ICE agent from using host candidates for connectivity checks, and it
// cannot hide addresses a browser exposes through other APIs.
package guard
