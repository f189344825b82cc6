package hl7

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testHeader() Header {
	return Header{
		SendingApplication: "APP",
		DateTime:           testTime,
		MessageType:        MessageType{Code: "ADT", TriggerEvent: "A01", Structure: "ADT_A01"},
		ControlID:          "1",
		ProcessingID:       "P",
		Version:            "2.5",
	}
}

func TestMessage_String(t *testing.T) {
	require := require.New(t)

	msg := NewMessage(testHeader()).
		AddSegment("PID", "1", nil, Field{"DOE", "JOHN"}, "a|b")

	require.Equal(
		"MSH|^~\\&|APP||||20240102030405||ADT^A01^ADT_A01|1|P|2.5\rPID|1||DOE^JOHN|a\\F\\b\r",
		msg.String(),
	)
}

func TestNewMessage_Defaults(t *testing.T) {
	require := require.New(t)

	msg := NewMessage(Header{MessageType: MessageType{Code: "ORU", TriggerEvent: "R01"}})
	require.Len(msg.Header.ControlID, 10)
	require.False(msg.Header.DateTime.IsZero())
	require.True(strings.HasPrefix(msg.String(), "MSH|^~\\&|"))
}

func TestHeader_RoundTrip(t *testing.T) {
	require := require.New(t)

	h := testHeader()
	h.SendingFacility = "A|B"
	h.ReceivingApplication = "R^APP"

	parsed, err := ParseHeader(h.String())
	require.NoError(err)
	require.Equal(DefaultDelimiters(), parsed.Delimiters)
	require.Equal("APP", parsed.SendingApplication)
	require.Equal("A|B", parsed.SendingFacility)
	require.Equal("R^APP", parsed.ReceivingApplication)
	require.True(testTime.Equal(parsed.DateTime))
	require.Equal(h.MessageType, parsed.MessageType)
	require.Equal("1", parsed.ControlID)
	require.Equal("P", parsed.ProcessingID)
	require.Equal("2.5", parsed.Version)
}

func TestParseHeader(t *testing.T) {
	require := require.New(t)

	h, err := ParseHeader("MSH|^~\\&|APP|FAC|RAPP|RFAC|202401020304+0800||ADT^A04|77|T|2.3\nPID|1")
	require.NoError(err)
	require.Equal(byte('\n'), h.Delimiters.Segment)
	require.Equal("FAC", h.SendingFacility)
	require.Equal("RFAC", h.ReceivingFacility)
	require.Equal(time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC), h.DateTime)
	require.Equal(MessageType{Code: "ADT", TriggerEvent: "A04"}, h.MessageType)
	require.Equal("77", h.ControlID)

	_, err = ParseHeader("PID|1|2|3")
	require.ErrorIs(err, ErrInvalidHeader)

	_, err = ParseHeader("MSH|^^\\&|APP")
	require.ErrorIs(err, ErrInvalidHeader)

	h, err = ParseHeader("MSH|^~\\&")
	require.NoError(err)
	require.Empty(h.ControlID)
}

func TestBatch_String(t *testing.T) {
	require := require.New(t)

	batch := &Batch{Header: EnvelopeHeader{SendingApplication: "APP", ControlID: "B1"}}
	batch.Add(NewMessage(testHeader()), NewMessage(testHeader()))

	units := Split(batch.String(), DefaultDelimiters())
	require.Len(units, 4)
	require.True(strings.HasPrefix(units[0], "BHS|^~\\&|APP|"))
	require.True(strings.HasSuffix(units[0], "|B1\r"))
	require.Equal("BTS|2\r", units[3])
	require.Len(SplitMessages(batch.String(), DefaultDelimiters()), 2)

	file := &FileBatch{Header: EnvelopeHeader{Name: "outbox"}}
	file.Add(batch)

	units = Split(file.String(), DefaultDelimiters())
	require.Len(units, 6)
	require.True(strings.HasPrefix(units[0], "FHS|^~\\&|"))
	require.Equal("FTS|1\r", units[5])
}

func TestRawPayload(t *testing.T) {
	var p Payload = RawPayload("MSH|^~\\&|X\r")
	require.Equal(t, "MSH|^~\\&|X\r", p.String())
}

func TestGenerateControlID(t *testing.T) {
	require := require.New(t)

	const workers, perWorker = 8, 200
	ids := make(chan string, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- GenerateControlID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{}, workers*perWorker)
	for id := range ids {
		require.Len(id, 10)
		seen[id] = struct{}{}
	}
	require.Len(seen, workers*perWorker)
}
