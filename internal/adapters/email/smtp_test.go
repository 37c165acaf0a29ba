package email

import (
	"bufio"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/bgsms/internal/core"
)

type received struct {
	from string
	rcpt []string
	data string
}

// fakeSMTP accepts a single session and records the envelope.
type fakeSMTP struct {
	ln         net.Listener
	rejectRcpt string

	mu  sync.Mutex
	got received
	wg  sync.WaitGroup
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *fakeSMTP) port() string {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	return port
}

func (s *fakeSMTP) result() received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got
}

func (s *fakeSMTP) serve() {
	defer s.wg.Done()
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = io.WriteString(conn, line+"\r\n") }
	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-fake")
			reply("250 8BITMIME")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			s.mu.Lock()
			s.got.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			s.mu.Unlock()
			reply("250 ok")
		case strings.HasPrefix(upper, "RCPT TO:"):
			addr := strings.Trim(cmd[len("RCPT TO:"):], "<> ")
			if s.rejectRcpt != "" && addr == s.rejectRcpt {
				reply("550 no such user")
				continue
			}
			s.mu.Lock()
			s.got.rcpt = append(s.got.rcpt, addr)
			s.mu.Unlock()
			reply("250 ok")
		case upper == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.got.data = b.String()
			s.mu.Unlock()
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func testMessage(port string) core.Message {
	return core.Message{
		SMTPJSON: `{"host":"127.0.0.1","port":"` + port + `","encryption":"none"}`,
		From:     "Notifier@Example.com: SMS Engine",
		To:       "ops@example.com: Ops; bad-address; lead@example.com",
		CC:       "cc@example.com",
		BCC:      "audit@example.com",
		ReplyTo:  "noreply@example.com",
		Subject:  "Job started",
		HTMLBody: "<p>Hello <b>Ops</b></p><br><p>Total: 10</p>",
	}
}

func TestMailerSend(t *testing.T) {
	srv := startFakeSMTP(t)
	m := NewMailer(MailerOptions{DialTimeout: 2 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Send(ctx, testMessage(srv.port())))

	srv.ln.Close()
	srv.wg.Wait()
	got := srv.result()
	assert.Equal(t, "notifier@example.com", got.from)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com", "cc@example.com", "audit@example.com"}, got.rcpt)

	msg, err := mail.ReadMessage(strings.NewReader(got.data))
	require.NoError(t, err)
	assert.Equal(t, "Job started", msg.Header.Get("Subject"))
	assert.Contains(t, msg.Header.Get("To"), "ops@example.com")
	assert.Empty(t, msg.Header.Get("Bcc"))
	assert.NotContains(t, got.data, "audit@example.com")

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	var bodies []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		types = append(types, p.Header.Get("Content-Type"))
		bodies = append(bodies, strings.ReplaceAll(string(b), "\r\n", "\n"))
	}
	require.Len(t, types, 2)
	assert.True(t, strings.HasPrefix(types[0], "text/plain"))
	assert.True(t, strings.HasPrefix(types[1], "text/html"))
	assert.Equal(t, "Hello Ops\n\nTotal: 10", bodies[0])
	assert.Contains(t, bodies[1], "<b>Ops</b>")
}

func TestMailerSend_RejectedRecipient(t *testing.T) {
	srv := startFakeSMTP(t)
	srv.rejectRcpt = "cc@example.com"
	m := NewMailer(MailerOptions{DialTimeout: 2 * time.Second})

	err := m.Send(context.Background(), testMessage(srv.port()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rcpt cc@example.com")
}

func TestMailerSend_Validation(t *testing.T) {
	m := NewMailer(MailerOptions{})
	msg := core.Message{SMTPJSON: `{"host":"127.0.0.1","port":"1"}`, From: "nope", To: "", Subject: " "}

	err := m.Send(context.Background(), msg)
	require.Error(t, err)
	for _, want := range []string{"from address", "to address", "subject", "body"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(`{"host":" smtp.example.com ","port":587,"encryption":"STARTTLS","username":"u"}`)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", s.Host)
	assert.Equal(t, "smtp.example.com:587", s.addr())
	assert.Equal(t, EncryptionSTARTTLS, s.Encryption)

	s, err = ParseSettings(`{"host":"smtp.example.com","encryption":"ssl"}`)
	require.NoError(t, err)
	assert.Equal(t, "465", s.Port.String())
	assert.True(t, s.implicitTLS())

	s, err = ParseSettings(`{"host":"smtp.example.com"}`)
	require.NoError(t, err)
	assert.Equal(t, "25", s.Port.String())

	for _, raw := range []string{"", "{", `{"port":25}`, `{"host":"h","port":"x"}`, `{"host":"h","encryption":"rot13"}`} {
		_, err := ParseSettings(raw)
		assert.Error(t, err, raw)
	}
}

func TestHTMLToText(t *testing.T) {
	in := "<html><body><h1>Title</h1>\r\n<table><tr><td>A</td><td>B</td></tr></table><p>x &amp; y</p></body></html>"
	assert.Equal(t, "Title\n\nA\tB\nx & y", htmlToText(in))
}
