package session

// User is the persisted identity record.
type User struct {
	ID          string
	Phone       string
	Name        string
	AccountKind string
	Verified    bool
}

// State is the session lifecycle position.
type State int

const (
	Initializing State = iota
	Unauthenticated
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Snapshot is an immutable copy of the session handed to readers and
// subscribers. Version increases with every transition.
type Snapshot struct {
	Version         uint64
	State           State
	User            *User
	IsAuthenticated bool
	AccessToken     string
	RefreshToken    string
	IsLoading       bool
	Error           string
}
