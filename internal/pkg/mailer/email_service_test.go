package mailer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.messages = append(c.messages, m...)
	return c.err
}

func TestSendAgentReply(t *testing.T) {
	sender := &captureSender{}
	svc := NewEmailServiceWithSender(sender, "agent@bh.tn", "BH Assurance")

	err := svc.SendAgentReply("client@example.com", "Votre devis auto", "Bonjour,\n\nVoici votre devis <auto>.")
	require.NoError(t, err)
	require.Len(t, sender.messages, 1)

	m := sender.messages[0]
	assert.Equal(t, []string{"client@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Votre devis auto"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "&lt;auto&gt;")
}

func TestSendAgentReplyWrapsFailure(t *testing.T) {
	smtpErr := errors.New("535 authentication failed")
	svc := NewEmailServiceWithSender(&captureSender{err: smtpErr}, "agent@bh.tn", "BH")

	err := svc.SendAgentReply("client@example.com", "s", "b")

	assert.ErrorIs(t, err, smtpErr)
}

func TestSendAgentReplyWithoutSMTP(t *testing.T) {
	svc := NewEmailService("", 587, "", "", "BH")

	assert.ErrorIs(t, svc.SendAgentReply("client@example.com", "s", "b"), ErrNotConfigured)
}

func TestRenderHTML(t *testing.T) {
	got := renderHTML("Ligne 1\nLigne 2\n\n\n\nFin")
	assert.Equal(t, `<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;"><p>Ligne 1<br>Ligne 2</p><p>Fin</p></div>`, got)
}
