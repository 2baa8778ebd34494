package imap

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/mikey/opportunity-agent/internal/core"
	"github.com/mikey/opportunity-agent/internal/utils"
	"golang.org/x/text/encoding/charmap"
)

// NoSubject replaces an empty Subject header
const NoSubject = "(no subject)"

// ParseMessage turns a raw RFC 5322 message into an Opportunity. The body
// is the first text/plain part of a multipart message, or the whole
// payload of a single-part one.
func ParseMessage(uid uint32, r io.Reader, receivedAt time.Time) (*core.Opportunity, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	opp := &core.Opportunity{
		ID:         strconv.FormatUint(uint64(uid), 10),
		ReceivedAt: receivedAt,
	}

	h := mr.Header
	if subject, err := h.Subject(); err == nil {
		opp.Subject = strings.TrimSpace(subject)
	} else {
		opp.Subject = strings.TrimSpace(h.Get("Subject"))
	}
	if opp.Subject == "" {
		opp.Subject = NoSubject
	}

	opp.Sender, opp.SenderAddress = parseFrom(h)

	if id, err := h.MessageID(); err == nil {
		opp.MessageID = id
	}
	if date, err := h.Date(); err == nil && !date.IsZero() {
		opp.ReceivedAt = date
	}

	mediaType, _, _ := h.ContentType()
	multipart := strings.HasPrefix(mediaType, "multipart/")

	body, err := readBody(mr, multipart)
	if err != nil {
		return nil, err
	}
	opp.Body = body
	opp.Snippet = utils.Snippet(body, utils.SnippetLength)
	return opp, nil
}

func parseFrom(h mail.Header) (display, address string) {
	list, err := h.AddressList("From")
	if err != nil || len(list) == 0 {
		raw := strings.TrimSpace(h.Get("From"))
		address = raw
		if start := strings.LastIndex(raw, "<"); start >= 0 {
			if end := strings.Index(raw[start:], ">"); end > 0 {
				address = raw[start+1 : start+end]
			}
		}
		return raw, strings.TrimSpace(address)
	}
	from := list[0]
	if from.Name == "" {
		return from.Address, from.Address
	}
	return fmt.Sprintf("%s <%s>", from.Name, from.Address), from.Address
}

func readBody(mr *mail.Reader, multipart bool) (string, error) {
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", fmt.Errorf("failed to read message part: %w", err)
		}
		if p == nil {
			return "", nil
		}

		if multipart {
			h, ok := p.Header.(*mail.InlineHeader)
			if !ok {
				continue
			}
			if ct, _, _ := h.ContentType(); ct != "text/plain" {
				continue
			}
		}

		data, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read message body: %w", err)
		}
		return decodeText(data), nil
	}
}

// decodeText keeps valid UTF-8 as is and reads anything else as ISO-8859-1
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(decoded)
}
