package dispatch

import "time"

// ResponseType is a transport directive carried in a SideChannel.
type ResponseType string

const (
	// ResponseFile serves Filename inline.
	ResponseFile ResponseType = "file"
	// ResponseDownload serves Filename as an attachment.
	ResponseDownload ResponseType = "download"
	// ResponseRedirect redirects to RedirectTo.
	ResponseRedirect ResponseType = "redirect"
)

// DefaultRedirectCode is used when a redirect directive has no code.
const DefaultRedirectCode = 302

// CookieOptions mirror the attributes of a Set-Cookie header.
type CookieOptions struct {
	Path     string        `json:"path,omitempty"`
	Domain   string        `json:"domain,omitempty"`
	MaxAge   time.Duration `json:"maxAge,omitempty"`
	Expires  time.Time     `json:"expires,omitempty"`
	Secure   bool          `json:"secure,omitempty"`
	HTTPOnly bool          `json:"httpOnly,omitempty"`
	SameSite string        `json:"sameSite,omitempty"` // lax, strict or none
}

// Cookie is a cookie a handler asks the transport to set.
type Cookie struct {
	Name    string        `json:"name"`
	Value   string        `json:"value"`
	Options CookieOptions `json:"options"`
}

// SideChannel carries out-of-band instructions returned next to handler data.
type SideChannel struct {
	SetCookies   []Cookie     `json:"setCookies,omitempty"`
	ResponseType ResponseType `json:"responseType,omitempty"`
	Filename     string       `json:"filename,omitempty"`
	RedirectTo   string       `json:"redirectTo,omitempty"`
	RedirectCode int          `json:"redirectCode,omitempty"`
}

// directive returns the transport instruction the side channel asks for,
// or nil when data should be returned instead. Unknown response types and
// directives without a filename or target are ignored.
func (s SideChannel) directive() *Instruction {
	switch s.ResponseType {
	case ResponseFile, ResponseDownload:
		if s.Filename == "" {
			return nil
		}
		return &Instruction{Type: s.ResponseType, Filename: s.Filename}
	case ResponseRedirect:
		if s.RedirectTo == "" {
			return nil
		}
		code := s.RedirectCode
		if code == 0 {
			code = DefaultRedirectCode
		}
		return &Instruction{Type: ResponseRedirect, RedirectTo: s.RedirectTo, RedirectCode: code}
	}
	return nil
}

// Outcome is what a handler produces: Plain data, or data WithSideChannel.
// The zero Outcome is Plain(nil).
type Outcome struct {
	data any
	side *SideChannel
}

// Plain returns an Outcome carrying only data.
func Plain(data any) Outcome {
	return Outcome{data: data}
}

// WithSideChannel returns an Outcome carrying data and side-channel instructions.
func WithSideChannel(data any, side SideChannel) Outcome {
	return Outcome{data: data, side: &side}
}

// Data returns the handler data.
func (o Outcome) Data() any {
	return o.data
}

// Side returns the side channel and whether one is present.
func (o Outcome) Side() (SideChannel, bool) {
	if o.side == nil {
		return SideChannel{}, false
	}
	return *o.side, true
}

// Exposed reports whether the outcome carries a side channel.
func (o Outcome) Exposed() bool {
	return o.side != nil
}

func (o Outcome) cookies() []Cookie {
	if o.side == nil {
		return nil
	}
	return o.side.SetCookies
}
