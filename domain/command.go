package domain

// Command is an inbound core event, always originating from one connection.
type Command interface {
	Origin() ConnectionID
}

// AuthenticateCommand binds the connection to a presented identity.
type AuthenticateCommand struct {
	Connection ConnectionID
	UserID     string
	Username   string
}

func (c AuthenticateCommand) Origin() ConnectionID { return c.Connection }

// SendMessageCommand routes a direct message to ToUserID.
type SendMessageCommand struct {
	Connection ConnectionID
	ToUserID   string
	Text       string
}

func (c SendMessageCommand) Origin() ConnectionID { return c.Connection }

// GetHistoryCommand asks for the thread with WithUserID.
type GetHistoryCommand struct {
	Connection ConnectionID
	WithUserID string
}

func (c GetHistoryCommand) Origin() ConnectionID { return c.Connection }

// DisconnectCommand is produced by the transport when a connection closes.
type DisconnectCommand struct {
	Connection ConnectionID
}

func (c DisconnectCommand) Origin() ConnectionID { return c.Connection }
