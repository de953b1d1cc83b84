package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func TestMailer_SendShareInvite(t *testing.T) {
	var (
		gotFrom string
		gotTo   []string
		body    bytes.Buffer
	)
	m := NewWithSender("noreply@grocery.example.com", gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		gotFrom = from
		gotTo = to
		_, err := msg.WriteTo(&body)
		return err
	}))

	err := m.SendShareInvite(context.Background(), Invite{
		To:          "sam@example.com",
		ListName:    "Weekend BBQ",
		ShareURL:    "https://grocery.example.com/join/abc",
		Role:        "editor",
		Permissions: "View items, Add items, Edit items",
	})
	require.NoError(t, err)

	assert.Equal(t, "noreply@grocery.example.com", gotFrom)
	assert.Equal(t, []string{"sam@example.com"}, gotTo)
	assert.Contains(t, body.String(), "Subject: Join the grocery list \"Weekend BBQ\"")
}

func TestMailer_SendFailure(t *testing.T) {
	m := NewWithSender("noreply@grocery.example.com", gomail.SendFunc(func(string, []string, io.WriterTo) error {
		return errors.New("connection refused")
	}))
	err := m.SendShareInvite(context.Background(), Invite{To: "sam@example.com", ListName: "x", ShareURL: "u"})
	assert.Error(t, err)
}
