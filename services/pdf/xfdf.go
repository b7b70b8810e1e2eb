package pdf

import (
	"bufio"
	"encoding/xml"
	"io"
	"sort"
)

const (
	checkboxOn  = "On"
	checkboxOff = "Off"
)

// XFDF holds the values of PDF form fields, written as XML Forms Data Format.
type XFDF struct {
	fields map[string]string
}

func NewXFDF() *XFDF {
	return &XFDF{fields: make(map[string]string)}
}

func (x *XFDF) Set(field, value string) { x.fields[field] = value }
func (x *XFDF) Check(field string)      { x.fields[field] = checkboxOn }
func (x *XFDF) Uncheck(field string)    { x.fields[field] = checkboxOff }

func (x *XFDF) Get(field string) (string, bool) {
	v, ok := x.fields[field]
	return v, ok
}

func (x *XFDF) Len() int { return len(x.fields) }

// WriteTo writes the XFDF document, fields sorted by name.
func (x *XFDF) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}

	names := make([]string, 0, len(x.fields))
	for name := range x.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = io.WriteString(cw, xml.Header)
	_, _ = io.WriteString(cw, "<xfdf xmlns=\"http://ns.adobe.com/xfdf/\" xml:space=\"preserve\">\n<fields>\n")
	for _, name := range names {
		_, _ = io.WriteString(cw, "<field name=\"")
		_ = xml.EscapeText(cw, []byte(name))
		_, _ = io.WriteString(cw, "\">\n<value>")
		_ = xml.EscapeText(cw, []byte(x.fields[name]))
		_, _ = io.WriteString(cw, "</value>\n</field>\n")
	}
	_, _ = io.WriteString(cw, "</fields>\n</xfdf>\n")

	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, cw.w.Flush()
}

// countingWriter keeps the first write error.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	cw.err = err
	return n, err
}
