package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/CZERTAINLY/cronwatch/internal/model"
	"github.com/wneessen/go-mail"
)

const sinkMail = "mail"

var errNoSendmail = errors.New("empty sendmail command")

// Sendmail composes a plain text message and pipes it to a sendmail
// compatible command. Addresses without a domain, like root, are qualified
// with Host, or with the local host name when Host is empty.
type Sendmail struct {
	Host string
}

func (s Sendmail) Send(ctx context.Context, sendmail []string, m model.Mail) error {
	derr := &model.DeliveryError{Sink: sinkMail, Target: strings.Join(m.To, ", "), ExitCode: -1}
	if len(sendmail) == 0 {
		derr.Err = errNoSendmail
		return derr
	}

	host := s.Host
	if host == "" {
		host = hostname()
	}
	m.From = qualify(m.From, host)
	to := make([]string, len(m.To))
	for i, addr := range m.To {
		to[i] = qualify(addr, host)
	}
	m.To = to

	raw, err := compose(m)
	if err != nil {
		derr.Err = err
		return derr
	}

	cmd := exec.CommandContext(ctx, sendmail[0], sendmail[1:]...)
	cmd.Stdin = bytes.NewReader(raw)
	out, err := cmd.CombinedOutput()
	if err != nil {
		derr.Err = err
		derr.Output = string(out)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			derr.ExitCode = exitErr.ExitCode()
		}
		return derr
	}
	slog.DebugContext(ctx, "mail sent", "to", m.To, "sendmail", sendmail[0])
	return nil
}

func compose(m model.Mail) ([]byte, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, err
	}
	if err := msg.To(m.To...); err != nil {
		return nil, err
	}
	msg.Subject(m.Subject)
	if m.Date.IsZero() {
		msg.SetDate()
	} else {
		msg.SetDateWithValue(m.Date)
	}
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, m.Body)

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// qualify appends @host to a bare local part
func qualify(addr, host string) string {
	if addr == "" || strings.ContainsAny(addr, "@<") {
		return addr
	}
	return addr + "@" + host
}
