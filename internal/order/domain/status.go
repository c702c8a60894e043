package domain

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAccepted       Status = "accepted"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// ActorRole identifies who is requesting a transition. Authorization is
// decided here against the edge table, never by the caller.
type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleChef     ActorRole = "chef"
	RoleDelivery ActorRole = "delivery"
)

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (r ActorRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleChef, RoleDelivery:
		return true
	}
	return false
}

type edge struct {
	from Status
	to   Status
}

// transitions is the single source of truth for which edges exist and which
// actor may drive them. Any (from, to) pair absent from this map is illegal,
// including self-edges; a cancellation mid-delivery is deliberately absent.
var transitions = map[edge][]ActorRole{
	{StatusPending, StatusAccepted}:         {RoleChef},
	{StatusPending, StatusCancelled}:        {RoleCustomer, RoleChef},
	{StatusAccepted, StatusPreparing}:       {RoleChef},
	{StatusAccepted, StatusCancelled}:       {RoleCustomer, RoleChef},
	{StatusPreparing, StatusReady}:          {RoleChef},
	{StatusPreparing, StatusCancelled}:      {RoleCustomer, RoleChef},
	{StatusReady, StatusOutForDelivery}:     {RoleDelivery},
	{StatusReady, StatusCancelled}:          {RoleChef},
	{StatusOutForDelivery, StatusDelivered}: {RoleDelivery},
}

// CanTransition reports whether the edge (from, to) exists at all.
func CanTransition(from, to Status) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// ActorAllowed reports whether role may drive the edge (from, to). It returns
// false for edges that do not exist; callers should check CanTransition first
// to distinguish an illegal edge from an unauthorized actor.
func ActorAllowed(from, to Status, role ActorRole) bool {
	roles, ok := transitions[edge{from, to}]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
