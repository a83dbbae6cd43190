package paxos

// Shared test doubles for the state machines. The fake network records
// everything a machine emits instead of dialing anyone.

type sent struct {
	msg Message
	to  string
}

type fakeNet struct {
	peers   int
	sends   []sent
	sendAll []Message
	bcasts  []Message
}

func (f *fakeNet) Send(msg Message, to string) { f.sends = append(f.sends, sent{msg, to}) }
func (f *fakeNet) SendAll(msg Message)         { f.sendAll = append(f.sendAll, msg) }
func (f *fakeNet) Broadcast(msg Message)       { f.bcasts = append(f.bcasts, msg) }
func (f *fakeNet) Peers() int                  { return f.peers }

// countQuit returns a quit func and a pointer to its call count.
func countQuit() (func(), *int) {
	n := 0
	return func() { n++ }, &n
}
