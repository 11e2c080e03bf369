package service_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/cronwatch/internal/model"
	"github.com/CZERTAINLY/cronwatch/internal/service"
	"github.com/stretchr/testify/require"
)

// fakeSendmail writes a script which behaves like sendmail -t, storing the
// message in the returned file
func fakeSendmail(t *testing.T, body string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	eml := filepath.Join(dir, "mail.eml")
	script := filepath.Join(dir, "sendmail")
	content := "#!/bin/sh\ncat > " + eml + "\n" + body
	require.NoError(t, os.WriteFile(script, []byte(content), 0o700))
	return script, eml
}

var mail = model.Mail{
	From:    "cron@box",
	To:      []string{"ops@example.com"},
	Subject: "cronwatch <cron@box> job",
	Body:    "executed successfully\njob\n",
	Date:    time.Date(2010, time.March, 7, 1, 2, 3, 0, time.UTC),
}

func TestSendmail(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)
	script, eml := fakeSendmail(t, "exit 0\n")

	err := service.Sendmail{}.Send(t.Context(), []string{sh, script, "-oi", "-t"}, mail)
	require.NoError(t, err)

	raw, err := os.ReadFile(eml)
	require.NoError(t, err)
	msg := string(raw)
	require.Contains(t, msg, "Subject: cronwatch <cron@box> job")
	require.Contains(t, msg, "To: <ops@example.com>")
	require.Contains(t, msg, "From: <cron@box>")
	require.Contains(t, msg, "Message-ID: <")
	require.Contains(t, msg, "text/plain")
	require.Contains(t, msg, "executed successfully")
}

func TestSendmail_Fail(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)
	script, _ := fakeSendmail(t, "echo 'no route to host' >&2\nexit 75\n")

	t.Run("exit code", func(t *testing.T) {
		err := service.Sendmail{}.Send(t.Context(), []string{sh, script}, mail)
		require.Error(t, err)
		var derr *model.DeliveryError
		require.ErrorAs(t, err, &derr)
		require.Equal(t, "mail", derr.Sink)
		require.Equal(t, "ops@example.com", derr.Target)
		require.Equal(t, 75, derr.ExitCode)
		require.Contains(t, derr.Output, "no route to host")
		require.Equal(t, model.KindDelivery, model.KindOf(err))
		require.Contains(t, err.Error(), "(exit code 75)")
	})

	t.Run("missing binary", func(t *testing.T) {
		err := service.Sendmail{}.Send(t.Context(), []string{filepath.Join(t.TempDir(), "sendmail")}, mail)
		var derr *model.DeliveryError
		require.ErrorAs(t, err, &derr)
		require.Equal(t, -1, derr.ExitCode)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty command", func(t *testing.T) {
		err := service.Sendmail{}.Send(t.Context(), nil, mail)
		var derr *model.DeliveryError
		require.ErrorAs(t, err, &derr)
	})

	t.Run("bad sender", func(t *testing.T) {
		bad := mail
		bad.From = "not an <address"
		err := service.Sendmail{}.Send(t.Context(), []string{sh, script}, bad)
		var derr *model.DeliveryError
		require.ErrorAs(t, err, &derr)
		require.Equal(t, -1, derr.ExitCode)
	})
}

func TestSendmail_LocalAddresses(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)
	script, eml := fakeSendmail(t, "exit 0\n")

	local := mail
	local.From = "cron"
	local.To = []string{"root", "ops@example.com"}
	err := service.Sendmail{Host: "box"}.Send(t.Context(), []string{sh, script, "-oi", "-t"}, local)
	require.NoError(t, err)

	raw, err := os.ReadFile(eml)
	require.NoError(t, err)
	msg := string(raw)
	require.Contains(t, msg, "From: <cron@box>")
	require.Contains(t, msg, "To: <root@box>, <ops@example.com>")
}
