package authflow

import "github.com/daveham/FeaturesManager/oauth"

// State is the position of the flow in the three-legged handshake.
type State int

const (
	Unauthenticated State = iota
	RequestTokenPending
	AwaitingVerification
	AccessTokenPending
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "Unauthenticated"
	case RequestTokenPending:
		return "RequestTokenPending"
	case AwaitingVerification:
		return "AwaitingVerification"
	case AccessTokenPending:
		return "AccessTokenPending"
	case Authenticated:
		return "Authenticated"
	}
	return "Unknown"
}

// Status tracks one piece of fetched data.
type Status int

const (
	Idle Status = iota
	Requested
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Requested:
		return "Requested"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// DataState is the request/success/error lifecycle of one value. A failed
// request keeps the last good Data.
type DataState[T any] struct {
	Status Status
	Data   T
	Err    error
}

// Ok reports whether Data holds a successfully fetched value.
func (d DataState[T]) Ok() bool { return d.Status == Succeeded }

func (d *DataState[T]) request() {
	d.Status = Requested
	d.Err = nil
}

func (d *DataState[T]) succeed(v T) {
	d.Status = Succeeded
	d.Data = v
	d.Err = nil
}

// failedFrom returns prev with err recorded. A value that had already
// succeeded stays usable.
func failedFrom[T any](prev DataState[T], err error) DataState[T] {
	if prev.Status != Succeeded {
		prev.Status = Failed
	}
	prev.Err = err
	return prev
}

func (d *DataState[T]) reset() {
	*d = DataState[T]{}
}

// Persisted is the raw credential material read from storage.
type Persisted struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

func (p Persisted) hasConsumer() bool { return p.ConsumerKey != "" && p.ConsumerSecret != "" }
func (p Persisted) hasToken() bool    { return p.Token != "" && p.TokenSecret != "" }

// Snapshot is a copy of the flow's state.
type Snapshot struct {
	State            State
	Consumer         *oauth.Consumer
	RequestToken     DataState[oauth.RequestToken]
	AuthorizationURL DataState[string]
	AccessToken      DataState[oauth.AccessToken]
	Persisted        Persisted
}
