package model

import "time"

// Message represents a single mail message fetched from an IMAP mailbox.
//
// DateRaw carries the Date header exactly as the server delivered it; it is
// the only forensic record of malformed input and is always preserved next
// to the normalized forms. DateParsed is the canonical UTC instant (or the
// raw text again when normalization failed), and DateRegional is only set
// when normalization actually changed something.
type Message struct {
	UID          uint32    `json:"uid" yaml:"uid"`
	MessageID    string    `json:"messageId,omitempty" yaml:"messageId,omitempty"`
	Mailbox      string    `json:"mailbox" yaml:"mailbox"`
	Subject      string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	From         string    `json:"from,omitempty" yaml:"from,omitempty"`
	To           []string  `json:"to,omitempty" yaml:"to,omitempty"`
	Flags        []string  `json:"flags,omitempty" yaml:"flags,omitempty"`
	Size         int64     `json:"size,omitempty" yaml:"size,omitempty"`
	DateRaw      string    `json:"dateRaw,omitempty" yaml:"dateRaw,omitempty"`
	DateParsed   string    `json:"dateParsed,omitempty" yaml:"dateParsed,omitempty"`
	DateRegional string    `json:"dateRegional,omitempty" yaml:"dateRegional,omitempty"`
	InternalDate time.Time `json:"internalDate,omitempty" yaml:"internalDate,omitempty"`

	// Header and Raw are populated only when the step fetched the header
	// section or the full body; they never appear in emitted records.
	Header []byte `json:"-" yaml:"-"`
	Raw    []byte `json:"-" yaml:"-"`
}

// Envelope wraps a fetched message alongside an optional error encountered
// while fetching or decoding it.
type Envelope struct {
	Message Message
	Err     error
}

// Attachment is one decoded MIME part written (or about to be written) to
// disk by the download step.
type Attachment struct {
	UID       uint32 `json:"uid" yaml:"uid"`
	MessageID string `json:"messageId,omitempty" yaml:"messageId,omitempty"`
	Filename  string `json:"filename" yaml:"filename"`
	MIMEType  string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Size      int64  `json:"size" yaml:"size"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Hash      string `json:"hash,omitempty" yaml:"hash,omitempty"`
	Skipped   bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// MailboxInfo describes one mailbox returned by LIST.
type MailboxInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Delimiter  string   `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}
