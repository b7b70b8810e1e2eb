// Package pdf fills the faculty PDF forms with thesis data using pdftk.
package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/thesispool/thesispool/core"
	"github.com/thesispool/thesispool/core/thesis"
)

var (
	nowFunc = time.Now // mockable
	runFunc = runPdftk // mockable
)

// Document is a filled in form, ready for download.
type Document struct {
	Filename string
	Content  []byte
}

func runPdftk(ctx context.Context, pdftk, input, xfdf, output string) error {
	out, err := exec.CommandContext(ctx, pdftk, input, "fill_form", xfdf, "output", output, "flatten").CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "running pdftk: %s", out)
	}
	return nil
}

// Filename is `{yyyymmdd}_{form}_{studentID}.pdf`.
func Filename(th thesis.Thesis, form Form, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d.pdf", now.Format("20060102"), form, th.Student.ID)
}

type Generator struct {
	conf   core.PDFConfig
	logger core.Logger
}

func NewGenerator(conf *core.Config, logger core.Logger) *Generator {
	return &Generator{conf: conf.PDF, logger: logger}
}

// Generate fills the form template with the thesis. Intermediate files are removed.
func (g *Generator) Generate(ctx context.Context, th thesis.Thesis, form Form) (Document, error) {
	input := filepath.Join(g.conf.TemplateDir, string(form)+".pdf")
	if _, err := os.Stat(input); err != nil {
		return Document{}, errors.Wrapf(err, "form template %q", form)
	}
	if err := os.MkdirAll(g.conf.TmpDir, 0o700); err != nil {
		return Document{}, errors.Wrap(err, "creating tmp dir")
	}

	f, err := os.CreateTemp(g.conf.TmpDir, "gen_*.xfdf")
	if err != nil {
		return Document{}, errors.Wrap(err, "creating xfdf file")
	}
	xfdfPath := f.Name()
	defer g.remove(xfdfPath)

	_, err = Fields(th, form).WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Document{}, errors.Wrap(err, "writing xfdf file")
	}

	output := xfdfPath[:len(xfdfPath)-len(".xfdf")] + ".pdf"
	defer g.remove(output)
	if err = runFunc(ctx, g.conf.PdftkPath, input, xfdfPath, output); err != nil {
		return Document{}, err
	}

	content, err := os.ReadFile(output)
	if err != nil {
		return Document{}, errors.Wrap(err, "reading generated pdf")
	}
	return Document{Filename: Filename(th, form, nowFunc()), Content: content}, nil
}

func (g *Generator) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		g.logger.Warn(fmt.Sprintf("pdf: removing %s: %v", path, err), err)
	}
}
