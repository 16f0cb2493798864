package fsm

// Transition is one cell of the Upper Layer state table: the action to run
// and the state to move to once it completes.
type Transition struct {
	Action Action
	Next   State
}

// special next-state sentinels resolved by the engine rather than the
// static table, because the real next state depends on the outcome of the
// action (e.g. whether a service user accepted an incoming association).
const (
	// NextAE6Outcome: AE-6 either accepts (-> Sta3) or rejects the
	// incoming A-ASSOCIATE-RQ on protocol/application-context grounds
	// (-> Sta13, after sending A-ASSOCIATE-RJ). The engine decides based
	// on the indication handler's verdict.
	NextAE6Outcome State = -1

	// NextCollisionRequestor / NextCollisionAcceptor: AR-8 after a release
	// collision. NextCollisionAcceptor (Sta7, peer A-RELEASE-RQ arrives)
	// resolves by association role: Sta9 when this side requested the
	// association, Sta10 when it accepted it. NextCollisionRequestor (Sta8,
	// local release request) always resolves to Sta9.
	NextCollisionRequestor State = -2
	NextCollisionAcceptor  State = -3
)

// table[state][event] is nil when that (state, event) pair is unexpected;
// the engine treats a missing entry as AA-1 (local: abort on unexpected
// local primitive) or AA-8 (peer: abort on unexpected/invalid PDU),
// depending on whether the event originated locally or from the PDU layer.
var table = map[State]map[Event]Transition{
	Sta1: {
		EvtAAssociateRQLocal:       {AE1, Sta4},
		EvtTransportConnIndication: {AE5, Sta2},
	},
	Sta2: {
		EvtAAssociateRQPDU:   {AE6, NextAE6Outcome},
		EvtAAssociateACPDU:   {AA1, Sta13},
		EvtAAssociateRJPDU:   {AA1, Sta13},
		EvtAReleaseRQPDU:     {AA1, Sta13},
		EvtAReleaseRPPDU:     {AA1, Sta13},
		EvtPDataTFPDU:        {AA1, Sta13},
		EvtAAbortPDU:         {AA2, Sta1},
		EvtTransportConnClosed: {AA5, Sta1},
		EvtArtimTimerExpired: {AA2, Sta1},
		EvtInvalidPDU:        {AA1, Sta13},
	},
	Sta3: {
		EvtAAssociateACLocal: {AE7, Sta6},
		EvtAAssociateRJLocal: {AE8, Sta13},
		EvtAAbortLocal:       {AA1, Sta13},
		EvtTransportConnClosed: {AA4, Sta1},
		EvtAAbortPDU:          {AA3, Sta1},
		EvtInvalidPDU:         {AA8, Sta13},
	},
	Sta4: {
		EvtTransportConnConfirm: {AE2, Sta5},
		EvtTransportError:       {AA4, Sta1},
	},
	Sta5: {
		EvtAAssociateACPDU: {AE3, Sta6},
		EvtAAssociateRJPDU: {AE4, Sta1},
		EvtTransportConnClosed: {AA4, Sta1},
		EvtAAbortPDU:           {AA3, Sta1},
		EvtInvalidPDU:          {AA8, Sta13},
	},
	Sta6: {
		EvtPDataTFLocal:  {DT1, Sta6},
		EvtPDataTFPDU:    {DT2, Sta6},
		EvtAReleaseRQLocal: {AR1, Sta7},
		EvtAReleaseRQPDU:   {AR2, Sta8},
		EvtAAbortLocal:     {AA1, Sta13},
		EvtAAbortPDU:       {AA3, Sta1},
		EvtTransportConnClosed: {AA4, Sta1},
		EvtInvalidPDU:          {AA8, Sta13},
	},
	Sta7: {
		EvtAReleaseRPPDU:   {AR3, Sta1},
		EvtAReleaseRQPDU:   {AR8, NextCollisionAcceptor},
		EvtPDataTFPDU:      {AR6, Sta7},
		EvtPDataTFLocal:    {AR7, Sta8},
		EvtAAbortLocal:     {AA1, Sta13},
		EvtAAbortPDU:       {AA3, Sta1},
		EvtTransportConnClosed: {AA4, Sta1},
		EvtInvalidPDU:          {AA8, Sta13},
	},
	Sta8: {
		EvtAReleaseRPLocal: {AR4, Sta13},
		EvtAReleaseRQLocal: {AR8, NextCollisionRequestor},
		EvtPDataTFLocal:    {AR7, Sta8},
		EvtPDataTFPDU:      {AR6, Sta7},
		EvtAAbortLocal:     {AA1, Sta13},
		EvtAAbortPDU:       {AA3, Sta1},
		EvtTransportConnClosed: {AA4, Sta1},
		EvtInvalidPDU:          {AA8, Sta13},
	},
	Sta9: {
		EvtAReleaseRPLocal: {AR9, Sta11},
		EvtAAbortLocal:     {AA1, Sta13},
		EvtTransportConnClosed: {AA4, Sta1},
	},
	Sta10: {
		EvtAReleaseRPPDU:   {AR10, Sta12},
		EvtAAbortPDU:       {AA3, Sta1},
		EvtTransportConnClosed: {AA4, Sta1},
	},
	Sta11: {
		EvtAReleaseRPPDU: {AR3, Sta1},
		EvtTransportConnClosed: {AA4, Sta1},
	},
	Sta12: {
		EvtAReleaseRPLocal: {AR4, Sta13},
		EvtTransportConnClosed: {AA4, Sta1},
	},
	Sta13: {
		EvtAAssociateACPDU:   {AA6, Sta13},
		EvtAAssociateRJPDU:   {AA6, Sta13},
		EvtAAssociateRQPDU:   {AA7, Sta13},
		EvtPDataTFPDU:        {AA6, Sta13},
		EvtAReleaseRQPDU:     {AA6, Sta13},
		EvtAReleaseRPPDU:     {AA6, Sta13},
		EvtAAbortPDU:         {AA2, Sta1},
		EvtTransportConnClosed: {AR5, Sta1},
		EvtArtimTimerExpired: {AA2, Sta1},
		EvtInvalidPDU:        {AA7, Sta13},
	},
}

// Lookup returns the transition for (state, event) and whether one exists.
func Lookup(state State, event Event) (Transition, bool) {
	row, ok := table[state]
	if !ok {
		return Transition{}, false
	}
	t, ok := row[event]
	return t, ok
}
