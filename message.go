package sibila

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind classifies a Message's position in the dialogue.
type Kind string

const (
	KindInput       Kind = "input"
	KindOutput      Kind = "output"
	KindInstruction Kind = "instruction"
)

// ImageRef is an image attachment carried by a Message. URL is either a
// remote http(s) URL or a self-contained "data:" URL; AttachFile and
// AttachRemote eagerly materialise local or remote images into data URLs.
type ImageRef struct {
	URL string
}

// NewImageURL attaches a remote or already-encoded image URL verbatim.
func NewImageURL(url string) ImageRef {
	return ImageRef{URL: url}
}

// NewImageData builds a self-contained data URL from raw bytes and a MIME type.
func NewImageData(data []byte, mimeType string) ImageRef {
	encoded := base64.StdEncoding.EncodeToString(data)
	return ImageRef{URL: fmt.Sprintf("data:%s;base64,%s", mimeType, encoded)}
}

// AttachFile reads a local image file and materialises it into a data URL.
func AttachFile(path string) (ImageRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageRef{}, fmt.Errorf("sibila: read image file: %w", err)
	}
	return NewImageData(data, mimeTypeForExt(filepath.Ext(path))), nil
}

// AttachRemote downloads a remote image and materialises it into a data
// URL, bounded by a 30s timeout.
func AttachRemote(url string) (ImageRef, error) {
	client := http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return ImageRef{}, fmt.Errorf("sibila: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ImageRef{}, fmt.Errorf("sibila: download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ImageRef{}, fmt.Errorf("sibila: read image body: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mimeTypeForExt(filepath.Ext(url))
	}
	return NewImageData(data, mimeType), nil
}

func mimeTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Message is one turn of dialogue: a kind, a text body, and an optional
// ordered list of image attachments. Text may be empty only if Images is
// non-empty.
type Message struct {
	Kind   Kind
	Text   string
	Images []ImageRef
}

// NewInput builds an INPUT message from text and optional images.
func NewInput(text string, images ...ImageRef) Message {
	return Message{Kind: KindInput, Text: text, Images: images}
}

// NewOutput builds an OUTPUT message from text and optional images.
func NewOutput(text string, images ...ImageRef) Message {
	return Message{Kind: KindOutput, Text: text, Images: images}
}

// NewInstruction builds an INSTRUCTION message from text.
func NewInstruction(text string) Message {
	return Message{Kind: KindInstruction, Text: text}
}

// Validate enforces the Message invariant: text may be empty only if the
// message carries at least one image.
func (m Message) Validate() error {
	if m.Text == "" && len(m.Images) == 0 {
		return fmt.Errorf("sibila: message has neither text nor images")
	}
	return nil
}

// WireRole is the provider-neutral role tag used in the Thread wire format.
type WireRole string

const (
	WireRoleUser      WireRole = "user"
	WireRoleAssistant WireRole = "assistant"
	WireRoleSystem    WireRole = "system"
)

// WireContentPart is one typed part of a WireMessage's content, used when a
// message mixes text and images.
type WireContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// WireMessage is the provider-neutral role-tagged message shape a Thread
// serialises to: content is either a plain string or a list of typed parts.
type WireMessage struct {
	Role  WireRole
	Text  string
	Parts []WireContentPart
}
