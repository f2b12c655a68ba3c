package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/certificate-issuance/internal/model"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestSMTPCause(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.DeliveryCause
	}{
		{"auth failed", &textproto.Error{Code: 535, Msg: "5.7.8 authentication failed"}, model.CauseAuth},
		{"mailbox unavailable", &textproto.Error{Code: 550, Msg: "no such user"}, model.CauseRecipientRejected},
		{"greylisted", &textproto.Error{Code: 451, Msg: "try again later"}, model.CauseTransient},
		{"wrapped reply", fmt.Errorf("send: %w", &textproto.Error{Code: 421, Msg: "closing"}), model.CauseTransient},
		{"network", fmt.Errorf("dial: %w", timeoutErr{}), model.CauseTransient},
		{"deadline", context.DeadlineExceeded, model.CauseTransient},
		{"auth text", errors.New("smtp AUTH not supported"), model.CauseAuth},
		{"other", os.ErrInvalid, model.CauseUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, smtpCause(tt.err))
		})
	}
}

func TestSMTPMailer_OpenRequiresConfig(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Port: 25}, nil)

	_, err := m.Open(context.Background())
	require.ErrorIs(t, err, model.ErrNotConfigured)
}

func TestSMTPMailer_BuildMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", From: "noreply@example.com"}, nil)
	doc := testDocument()

	msg, err := m.buildMessage("ada@example.com", doc, model.Message{Subject: "Certificate", Body: "Hello"})
	require.NoError(t, err)

	to, err := msg.GetToString()
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Contains(t, to[0], "ada@example.com")
	assert.NotEmpty(t, msg.GetMessageID())
	assert.Len(t, msg.GetAttachments(), 1)
}

func TestSMTPMailer_BuildMessageRejectsBadAddress(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", From: "noreply@example.com"}, nil)

	_, err := m.buildMessage("not an address", testDocument(), model.Message{})

	var derr *model.DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.CauseInvalidMessage, derr.Cause)
	assert.False(t, derr.Retryable())
}

// fakeSMTPServer speaks enough SMTP for go-mail to dial, send and quit.
// mailReplies scripts the answers to successive MAIL FROM commands; once they run out
// every MAIL FROM is accepted.
type fakeSMTPServer struct {
	ln          net.Listener
	mu          sync.Mutex
	mailReplies []string
	conns       int
	delivered   int
}

func newFakeSMTPServer(t *testing.T, mailReplies ...string) *fakeSMTPServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &fakeSMTPServer{ln: ln, mailReplies: mailReplies}
	t.Cleanup(func() { _ = ln.Close() })

	go srv.serve()

	return srv
}

func (s *fakeSMTPServer) config() SMTPConfig {
	return SMTPConfig{
		Host:    "127.0.0.1",
		Port:    s.ln.Addr().(*net.TCPAddr).Port,
		From:    "noreply@example.com",
		Timeout: 5 * time.Second,
	}
}

func (s *fakeSMTPServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns++
		s.mu.Unlock()

		go s.handle(conn)
	}
}

func (s *fakeSMTPServer) handle(conn net.Conn) {
	defer conn.Close()

	tp := textproto.NewConn(conn)
	if err := tp.PrintfLine("220 localhost ESMTP ready"); err != nil {
		return
	}

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}

		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		var reply string

		switch verb {
		case "EHLO", "HELO":
			reply = "250 localhost"
		case "MAIL":
			reply = s.nextMailReply()
		case "RCPT", "RSET", "NOOP":
			reply = "250 OK"
		case "DATA":
			if err := tp.PrintfLine("354 end data with <CR><LF>.<CR><LF>"); err != nil {
				return
			}

			if _, err := tp.ReadDotBytes(); err != nil {
				return
			}

			s.mu.Lock()
			s.delivered++
			s.mu.Unlock()

			reply = "250 OK queued"
		case "QUIT":
			_ = tp.PrintfLine("221 bye")

			return
		default:
			reply = "500 unrecognized command"
		}

		if err := tp.PrintfLine("%s", reply); err != nil {
			return
		}
	}
}

func (s *fakeSMTPServer) nextMailReply() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.mailReplies) == 0 {
		return "250 OK"
	}

	reply := s.mailReplies[0]
	s.mailReplies = s.mailReplies[1:]

	return reply
}

func (s *fakeSMTPServer) stats() (conns, delivered int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conns, s.delivered
}

func openTestSession(t *testing.T, srv *fakeSMTPServer) *smtpSession {
	t.Helper()

	session, err := NewSMTPMailer(srv.config(), nil).Open(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { _ = session.Close() })

	return session.(*smtpSession)
}

func TestSMTPSession_Deliver(t *testing.T) {
	srv := newFakeSMTPServer(t)
	session := openTestSession(t, srv)

	res, err := session.Deliver(context.Background(), "ada@example.com", testDocument(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, ProviderSMTP, res.Provider)
	assert.NotEmpty(t, res.MessageID)

	_, err = session.Deliver(context.Background(), "bob@example.com", testDocument(), testMessage())
	require.NoError(t, err)

	conns, delivered := srv.stats()
	assert.Equal(t, 1, conns)
	assert.Equal(t, 2, delivered)
}

func TestSMTPSession_RedialsAfterTransientFailure(t *testing.T) {
	srv := newFakeSMTPServer(t, "451 4.3.0 try again later")
	session := openTestSession(t, srv)

	_, err := session.Deliver(context.Background(), "ada@example.com", testDocument(), testMessage())

	var derr *model.DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.CauseTransient, derr.Cause)
	assert.True(t, session.broken)

	res, err := session.Deliver(context.Background(), "ada@example.com", testDocument(), testMessage())
	require.NoError(t, err)
	assert.NotEmpty(t, res.MessageID)
	assert.False(t, session.broken)

	conns, delivered := srv.stats()
	assert.Equal(t, 2, conns)
	assert.Equal(t, 1, delivered)
}

func TestSMTPSession_PermanentFailureKeepsConnection(t *testing.T) {
	srv := newFakeSMTPServer(t, "550 5.7.1 sender rejected")
	session := openTestSession(t, srv)

	_, err := session.Deliver(context.Background(), "ada@example.com", testDocument(), testMessage())

	var derr *model.DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.NotEqual(t, model.CauseTransient, derr.Cause)
	assert.False(t, session.broken)

	_, err = session.Deliver(context.Background(), "ada@example.com", testDocument(), testMessage())
	require.NoError(t, err)

	conns, _ := srv.stats()
	assert.Equal(t, 1, conns)
}

func TestSMTPSession_DeliverAfterClose(t *testing.T) {
	srv := newFakeSMTPServer(t)
	session := openTestSession(t, srv)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	_, err := session.Deliver(context.Background(), "ada@example.com", testDocument(), testMessage())

	var derr *model.DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.CauseTransient, derr.Cause)

	_, delivered := srv.stats()
	assert.Zero(t, delivered)
}

func TestSMTPSession_CancelledContext(t *testing.T) {
	srv := newFakeSMTPServer(t)
	session := openTestSession(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := session.Deliver(ctx, "ada@example.com", testDocument(), testMessage())

	var derr *model.DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.CauseTransient, derr.Cause)
	assert.ErrorIs(t, err, context.Canceled)

	_, delivered := srv.stats()
	assert.Zero(t, delivered)
}

func TestSMTPSession_WaitForBusyConnectionHonoursDeadline(t *testing.T) {
	srv := newFakeSMTPServer(t)
	session := openTestSession(t, srv)

	// Hold the connection as a slow send would.
	session.sem <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := session.Deliver(ctx, "ada@example.com", testDocument(), testMessage())

	<-session.sem

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 2*time.Second)

	_, err = session.Deliver(context.Background(), "ada@example.com", testDocument(), testMessage())
	require.NoError(t, err)
}
