package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/arloliu/go-hl7/hl7"
	"github.com/arloliu/go-hl7/internal/cliconfig"
	"github.com/arloliu/go-hl7/logger"
	"github.com/arloliu/go-hl7/mllp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	os.Exit(m.Run())
}

// receiver is a loopback MLLP receiver. Messages whose PID contains REJECT are answered with AE.
type receiver struct {
	ln     net.Listener
	conns  atomic.Int32
	frames atomic.Int32
	noAck  atomic.Bool
}

func startReceiver(t *testing.T) *receiver {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r := &receiver{ln: ln}
	go r.serve()
	t.Cleanup(func() { _ = ln.Close() })

	return r
}

func (r *receiver) port() int {
	addr, _ := r.ln.Addr().(*net.TCPAddr)
	return addr.Port
}

func (r *receiver) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		r.conns.Add(1)
		go r.handle(conn)
	}
}

func (r *receiver) handle(conn net.Conn) {
	defer conn.Close()

	reader := mllp.NewReader(conn, 0)
	for {
		payload, err := reader.ReadFrame()
		if err != nil {
			return
		}
		r.frames.Add(1)

		if r.noAck.Load() {
			return
		}

		h, err := hl7.ParseHeader(string(payload))
		if err != nil {
			return
		}

		code := hl7.AckAccept
		if strings.Contains(string(payload), "REJECT") {
			code = hl7.AckError
		}
		ack := fmt.Sprintf("MSH|^~\\&|RCV|FAC|APP|FAC|20240101120000||ACK^A01^ACK|A%s|P|2.5\rMSA|%s|%s\r", h.ControlID, code, h.ControlID)
		if _, err := conn.Write(mllp.Encode([]byte(ack))); err != nil {
			return
		}
	}
}

func newMessage(patientID string) *hl7.Message {
	return hl7.NewMessage(hl7.Header{
		SendingApplication:   "APP",
		SendingFacility:      "FAC",
		ReceivingApplication: "RCV",
		ReceivingFacility:    "FAC",
		MessageType:          hl7.MessageType{Code: "ADT", TriggerEvent: "A04", Structure: "ADT_A01"},
		ProcessingID:         "P",
		Version:              "2.5",
	}).AddSegment("PID", "1", "", patientID)
}

// batchFile returns a file batch holding one message per patient id.
func batchFile(patientIDs ...string) string {
	batch := &hl7.Batch{Header: hl7.EnvelopeHeader{SendingApplication: "APP"}}
	for _, id := range patientIDs {
		batch.Add(newMessage(id))
	}
	file := &hl7.FileBatch{Header: hl7.EnvelopeHeader{SendingApplication: "APP"}}

	return file.Add(batch).String()
}

// restoreLogger puts back the global logger replaced by resolve.
func restoreLogger(t *testing.T) {
	prev := logger.GetLogger()
	t.Cleanup(func() { logger.SetLogger(prev) })
}

func TestRootCmd_ConfigPrecedence(t *testing.T) {
	require := require.New(t)
	restoreLogger(t)

	fs := afero.NewMemMapFs()
	require.NoError(afero.WriteFile(fs, "/etc/hl7send.toml", []byte(`
host = "file-host"
port = 6661
max_attempts = 7
retry_low = "2s"
log_format = "zerolog"
`), 0o644))
	t.Setenv("HL7SEND_MAX_ATTEMPTS", "3")
	t.Setenv("HL7SEND_RETRY_HIGH", "20s")

	a := &app{cfg: cliconfig.DefaultConfig(), fs: fs}
	cmd := a.rootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetOut(&stderr)
	cmd.SetArgs([]string{"send", "--config", "/etc/hl7send.toml", "--port", "7000", "/missing.hl7"})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(err, hl7.ErrFileRead)

	require.Equal("file-host", a.cfg.Host)
	require.Equal(7000, a.cfg.Port)
	require.Equal(3, a.cfg.MaxAttempts)
	require.Equal("2s", a.cfg.RetryLow.String())
	require.Equal("20s", a.cfg.RetryHigh.String())
	require.Equal(cliconfig.LogFormatZerolog, a.cfg.LogFormat)
	require.NotNil(a.logger)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	a := &app{cfg: cliconfig.DefaultConfig(), fs: afero.NewMemMapFs()}
	cmd := a.rootCmd()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"send", "--config", "/none.toml", "batch.hl7"})

	require.ErrorContains(t, cmd.ExecuteContext(context.Background()), "host is required")
}

func TestRootCmd_SendFile(t *testing.T) {
	require := require.New(t)
	restoreLogger(t)

	rcv := startReceiver(t)
	fs := afero.NewMemMapFs()
	require.NoError(afero.WriteFile(fs, "/out/adt.hl7", []byte(batchFile("P1", "P2")), 0o644))

	a := &app{cfg: cliconfig.DefaultConfig(), fs: fs}
	cmd := a.rootCmd()
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"send", "--config", "/none.toml",
		"--host", "127.0.0.1", "--port", fmt.Sprint(rcv.port()),
		"--keep-open", "--validate", "/out/adt.hl7",
	})

	require.NoError(cmd.ExecuteContext(context.Background()))
	require.True(a.cfg.ValidateHeaders)
	require.Equal(int32(1), rcv.conns.Load())
	require.Equal(int32(2), rcv.frames.Load())
}
