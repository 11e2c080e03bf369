package model

import (
	"context"
	"time"
)

// Mail is a report ready to be handed to a mail transfer agent
type Mail struct {
	From    string
	To      []string
	Subject string
	Body    string
	Date    time.Time
}

// Mailer delivers a message using the sendmail command line
type Mailer interface {
	Send(ctx context.Context, sendmail []string, m Mail) error
}

// Appender appends text to the file at path
type Appender interface {
	Append(ctx context.Context, path string, text string) error
}
