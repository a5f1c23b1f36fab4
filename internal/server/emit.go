package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonwraymond/calldispatch/dispatch"
)

// Error codes written by the server itself.
const (
	CodeBadRequest  = "bad_request"
	CodeInternal    = "internal"
	CodeRateLimited = "rate_limited"
	CodeOverloaded  = "overloaded"
	CodeEncode      = "encode_failed"
	CodeNoFile      = "file_unavailable"
)

// Emit writes res: cookies first, then the instruction or the body.
//
// Files are served inline or as an attachment, redirects use the recorded
// code, and bodies are JSON with status 200. A raw body that is a string or
// []byte is written verbatim. A file that is missing or a directory is
// answered with a failure envelope instead.
func Emit(w http.ResponseWriter, r *http.Request, res *dispatch.Result) {
	for _, c := range res.Cookies {
		http.SetCookie(w, httpCookie(c))
	}

	if in := res.Instruction; in != nil {
		if in.Type == dispatch.ResponseFile || in.Type == dispatch.ResponseDownload {
			if err := servable(in.Filename); err != nil {
				writeJSON(w, http.StatusOK, dispatch.FailureBody(dispatch.NewError(CodeNoFile, err.Error()), nil))
				return
			}
		}
		switch in.Type {
		case dispatch.ResponseDownload:
			w.Header().Set("Content-Disposition",
				mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(in.Filename)}))
			http.ServeFile(w, r, in.Filename)
		case dispatch.ResponseFile:
			http.ServeFile(w, r, in.Filename)
		case dispatch.ResponseRedirect:
			http.Redirect(w, r, in.RedirectTo, in.RedirectCode)
		}
		return
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch body := res.Body.(type) {
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	default:
		writeJSON(w, status, body)
	}
}

// servable reports why name cannot be sent as a file. ServeFile would list
// a directory, and an empty name is the working directory.
func servable(name string) error {
	if name == "" {
		return errors.New("no file named")
	}
	fi, err := os.Stat(name)
	if err != nil {
		return fmt.Errorf("file %s: %w", filepath.Base(name), fs.ErrNotExist)
	}
	if fi.IsDir() {
		return fmt.Errorf("file %s: is a directory", filepath.Base(name))
	}
	return nil
}

// writeJSON encodes v before writing anything, so an unencodable value
// still produces a well-formed failure envelope.
func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(dispatch.FailureBody(dispatch.NewError(CodeEncode, err.Error()), nil))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

// httpCookie converts a handler cookie. Path defaults to "/"; a sub-second
// positive MaxAge rounds up to one second and a negative one deletes.
func httpCookie(c dispatch.Cookie) *http.Cookie {
	o := c.Options
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     o.Path,
		Domain:   o.Domain,
		Expires:  o.Expires,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
	}
	if hc.Path == "" {
		hc.Path = "/"
	}

	switch {
	case o.MaxAge < 0:
		hc.MaxAge = -1
	case o.MaxAge > 0:
		hc.MaxAge = max(int(o.MaxAge/time.Second), 1)
	}

	switch strings.ToLower(o.SameSite) {
	case "lax":
		hc.SameSite = http.SameSiteLaxMode
	case "strict":
		hc.SameSite = http.SameSiteStrictMode
	case "none":
		hc.SameSite = http.SameSiteNoneMode
	}
	return hc
}
