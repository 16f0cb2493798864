// Package fsm implements the DICOM Upper Layer Association state machine,
// DICOM PS3.8 Table 9-10: 13 states, the event classes a service user or
// the transport can raise, and the 28 named actions that drive transitions.
package fsm

// State is one of the 13 Upper Layer Association states, PS3.8 §9.2.
type State int

const (
	Sta1  State = iota + 1 // Idle
	Sta2                   // Transport connection open, awaiting A-ASSOCIATE-RQ
	Sta3                   // Awaiting local A-ASSOCIATE response primitive
	Sta4                   // Awaiting transport connection opening to complete
	Sta5                   // Awaiting A-ASSOCIATE-AC or -RJ PDU
	Sta6                   // Association established
	Sta7                   // Awaiting A-RELEASE-RP PDU
	Sta8                   // Awaiting local A-RELEASE response primitive
	Sta9                   // Release collision: awaiting local A-RELEASE response, release collision
	Sta10                  // Release collision: awaiting A-RELEASE-RP PDU, release collision
	Sta11                  // Release collision: awaiting A-RELEASE-RP PDU, release collision
	Sta12                  // Release collision: awaiting local A-RELEASE response, release collision
	Sta13                  // Awaiting transport connection close
)

func (s State) String() string {
	names := map[State]string{
		Sta1: "Sta1", Sta2: "Sta2", Sta3: "Sta3", Sta4: "Sta4", Sta5: "Sta5",
		Sta6: "Sta6", Sta7: "Sta7", Sta8: "Sta8", Sta9: "Sta9", Sta10: "Sta10",
		Sta11: "Sta11", Sta12: "Sta12", Sta13: "Sta13",
	}
	if n, ok := names[s]; ok {
		return n
	}
	return "Sta?"
}

// Event is one of the event classes PS3.8 Table 9-10 rows are indexed by:
// local service-user primitives, received PDUs, transport notifications,
// and the ARTIM timer expiring.
type Event int

const (
	EvtAAssociateRQLocal  Event = iota + 1 // A-ASSOCIATE request (local user)
	EvtTransportConnConfirm                // transport connection confirmation
	EvtAAssociateRQPDU                     // A-ASSOCIATE-RQ PDU received
	EvtAAssociateACLocal                   // A-ASSOCIATE response accept (local user)
	EvtAAssociateRJLocal                   // A-ASSOCIATE response reject (local user)
	EvtAAssociateACPDU                     // A-ASSOCIATE-AC PDU received
	EvtAAssociateRJPDU                     // A-ASSOCIATE-RJ PDU received
	EvtTransportConnIndication              // transport connection indication (new incoming conn)
	EvtTransportConnClosed                  // transport connection closed
	EvtTransportError                       // transport connection error
	EvtAReleaseRQPDU                        // A-RELEASE-RQ PDU received
	EvtAReleaseRQLocal                      // A-RELEASE request (local user)
	EvtAReleaseRPPDU                        // A-RELEASE-RP PDU received
	EvtAReleaseRPLocal                      // A-RELEASE response (local user)
	EvtAAbortPDU                            // A-ABORT PDU received
	EvtAAbortLocal                          // A-ABORT request (local user)
	EvtArtimTimerExpired                    // ARTIM timer expired
	EvtPDataTFPDU                           // P-DATA-TF PDU received
	EvtPDataTFLocal                         // P-DATA request (local user)
	EvtInvalidPDU                           // unrecognized/malformed PDU received
)

func (e Event) String() string {
	names := map[Event]string{
		EvtAAssociateRQLocal:      "A-ASSOCIATE-RQ(local)",
		EvtTransportConnConfirm:   "Transport-Conn-Confirm",
		EvtAAssociateRQPDU:        "A-ASSOCIATE-RQ(pdu)",
		EvtAAssociateACLocal:      "A-ASSOCIATE-AC(local)",
		EvtAAssociateRJLocal:      "A-ASSOCIATE-RJ(local)",
		EvtAAssociateACPDU:        "A-ASSOCIATE-AC(pdu)",
		EvtAAssociateRJPDU:        "A-ASSOCIATE-RJ(pdu)",
		EvtTransportConnIndication: "Transport-Conn-Indication",
		EvtTransportConnClosed:    "Transport-Conn-Closed",
		EvtTransportError:         "Transport-Error",
		EvtAReleaseRQPDU:          "A-RELEASE-RQ(pdu)",
		EvtAReleaseRQLocal:        "A-RELEASE-RQ(local)",
		EvtAReleaseRPPDU:          "A-RELEASE-RP(pdu)",
		EvtAReleaseRPLocal:        "A-RELEASE-RP(local)",
		EvtAAbortPDU:              "A-ABORT(pdu)",
		EvtAAbortLocal:            "A-ABORT(local)",
		EvtArtimTimerExpired:      "ARTIM-expired",
		EvtPDataTFPDU:             "P-DATA-TF(pdu)",
		EvtPDataTFLocal:           "P-DATA(local)",
		EvtInvalidPDU:             "Invalid-PDU",
	}
	if n, ok := names[e]; ok {
		return n
	}
	return "Evt?"
}

// Action is one of the 28 named actions of PS3.8 Table 9-10.
type Action int

const (
	AE1 Action = iota + 1
	AE2
	AE3
	AE4
	AE5
	AE6
	AE7
	AE8
	DT1
	DT2
	AR1
	AR2
	AR3
	AR4
	AR5
	AR6
	AR7
	AR8
	AR9
	AR10
	AA1
	AA2
	AA3
	AA4
	AA5
	AA6
	AA7
	AA8
)

func (a Action) String() string {
	names := [...]string{
		"", "AE-1", "AE-2", "AE-3", "AE-4", "AE-5", "AE-6", "AE-7", "AE-8",
		"DT-1", "DT-2",
		"AR-1", "AR-2", "AR-3", "AR-4", "AR-5", "AR-6", "AR-7", "AR-8", "AR-9", "AR-10",
		"AA-1", "AA-2", "AA-3", "AA-4", "AA-5", "AA-6", "AA-7", "AA-8",
	}
	if int(a) >= 0 && int(a) < len(names) {
		return names[a]
	}
	return "A??"
}
