package extract

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ingestlab/internal/dom"
	"github.com/roach88/ingestlab/internal/ir"
	"github.com/roach88/ingestlab/internal/transform"
)

// Options controls a single-document extraction.
type Options struct {
	// ApplyTransforms runs list field transform chains. When false the rows
	// carry raw text, which is the fast structural preview.
	ApplyTransforms bool

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Extract applies doc to one raw HTML document.
func Extract(doc *ir.RuleDocument, raw string, opts Options) *Result {
	return ExtractDocument(doc, "", raw, opts)
}

// ExtractDocument is Extract with a document id attached to the result and
// to every warning.
func ExtractDocument(doc *ir.RuleDocument, id, raw string, opts Options) *Result {
	return prepare(doc).run(id, raw, opts)
}

// compiledField is a list field with its selector compiled once per run.
type compiledField struct {
	mapping ir.FieldMapping
	sel     *dom.Selector
	err     error
}

type compiledResource struct {
	res     ir.Resource
	root    *dom.Selector
	rootErr error
	item    *dom.Selector
	itemErr error
	fields  []compiledField
}

// plan holds the compiled selectors of a rule document. Compile failures
// are kept and reported per document, so one bad selector never blocks the
// other resources.
type plan struct {
	transformOpts transform.Options
	resources     []compiledResource
}

func prepare(doc *ir.RuleDocument) *plan {
	p := &plan{transformOpts: transform.Options{AllowExpressions: doc.AllowExpressions()}}
	for _, res := range doc.Resources() {
		cr := compiledResource{res: res}
		cr.root, cr.rootErr = dom.Compile(res.RootSelector())
		if l, ok := res.(*ir.ListResource); ok {
			cr.item, cr.itemErr = dom.Compile(l.ItemSelector)
			cr.fields = make([]compiledField, len(l.Fields))
			for i, f := range l.Fields {
				sel, err := dom.Compile(f.Selector)
				cr.fields[i] = compiledField{mapping: f, sel: sel, err: err}
			}
		}
		p.resources = append(p.resources, cr)
	}
	return p
}

// resourceRun collects the output of one resource in one document.
type resourceRun struct {
	id       string
	resource string
	rows     []ir.Row
	matches  int
	warnings []Warning
}

func (r *resourceRun) warn(field string, sev Severity, format string, args ...any) {
	r.warnings = append(r.warnings, Warning{
		Resource: r.resource,
		Field:    field,
		Document: r.id,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
	})
}

func (p *plan) run(id, raw string, opts Options) *Result {
	start := time.Now()
	log := opts.logger()

	out := &Result{
		Document:  id,
		Rows:      make(map[string][]ir.Row, len(p.resources)),
		Summaries: make([]ResourceSummary, 0, len(p.resources)),
	}

	parsed, err := dom.Parse(raw)
	if err != nil {
		for _, cr := range p.resources {
			name := cr.res.ResourceName()
			w := Warning{Resource: name, Document: id, Message: err.Error(), Severity: SeverityError}
			out.Rows[name] = []ir.Row{}
			out.Summaries = append(out.Summaries, ResourceSummary{
				Resource: name, Kind: cr.res.Kind(), Warnings: []string{w.Message},
			})
			out.Warnings = append(out.Warnings, w)
		}
		out.Elapsed = time.Since(start)
		return out
	}
	out.NodeCount = parsed.NodeCount()

	for _, cr := range p.resources {
		run := &resourceRun{id: id, resource: cr.res.ResourceName(), rows: []ir.Row{}}
		switch res := cr.res.(type) {
		case *ir.TableResource:
			extractTable(parsed, cr, res, run)
		case *ir.ListResource:
			p.extractList(parsed, cr, res, opts, run)
		default:
			panic(fmt.Sprintf("unreachable: unknown resource type %T", cr.res))
		}

		summary := ResourceSummary{
			Resource:    run.resource,
			Kind:        cr.res.Kind(),
			RecordCount: len(run.rows),
			Matches:     run.matches,
		}
		for _, w := range run.warnings {
			summary.Warnings = append(summary.Warnings, w.Message)
		}
		out.Rows[run.resource] = run.rows
		out.Summaries = append(out.Summaries, summary)
		out.Warnings = append(out.Warnings, run.warnings...)

		log.Debug("resource extracted",
			"document", id,
			"resource", run.resource,
			"rows", len(run.rows),
			"warnings", len(run.warnings))
	}

	out.Elapsed = time.Since(start)
	return out
}

// extractTable reads the first root match. Every tr descendant is a
// candidate row; rows without cells and all-th header rows are skipped.
// Columns map positionally onto cell text, missing cells read as "".
func extractTable(doc *dom.Document, cr compiledResource, t *ir.TableResource, run *resourceRun) {
	if cr.rootErr != nil {
		run.warn("", SeverityError, "selector error: %v", cr.rootErr)
		return
	}
	root, ok := doc.First(cr.root)
	if !ok {
		run.warn("", SeverityWarning, "table selector matched 0 nodes (%s)", t.Selector)
		return
	}
	run.matches = 1

	for _, tr := range root.Rows() {
		cells := tr.Cells()
		if len(cells) == 0 || tr.IsHeaderRow() {
			continue
		}
		values := make([]ir.Value, len(t.Columns))
		for i := range t.Columns {
			text := ""
			if i < len(cells) {
				text = cells[i].Text()
			}
			values[i] = ir.Text(text)
		}
		row := ir.NewRow(t.Name, t.Columns, values)
		if !row.IsEmpty() {
			run.rows = append(run.rows, row)
		}
	}
}

// extractList reads items under the first root match. Each field takes the
// text of its first match inside the item. A transform failure keeps Null
// for that cell and records a warning.
func (p *plan) extractList(doc *dom.Document, cr compiledResource, l *ir.ListResource, opts Options, run *resourceRun) {
	if cr.rootErr != nil {
		run.warn("", SeverityError, "selector error: %v", cr.rootErr)
		return
	}
	root, ok := doc.First(cr.root)
	if !ok {
		run.warn("", SeverityWarning, "list selector matched 0 nodes (%s)", l.Selector)
		return
	}
	if cr.itemErr != nil {
		run.warn("", SeverityError, "item selector error: %v", cr.itemErr)
		return
	}
	items := root.Select(cr.item)
	run.matches = len(items)

	names := l.OutputFields()
	for _, f := range cr.fields {
		if f.err != nil {
			run.warn(f.mapping.Name, SeverityError, "field selector error: %v", f.err)
		}
	}

	for idx, item := range items {
		values := make([]ir.Value, len(cr.fields))
		for i, f := range cr.fields {
			text := ""
			if f.err == nil {
				if n, ok := item.First(f.sel); ok {
					text = n.Text()
				}
			}
			var v ir.Value = ir.Text(text)
			if opts.ApplyTransforms && len(f.mapping.Transforms) > 0 {
				coerced, err := transform.Apply(v, f.mapping.Transforms, p.transformOpts)
				if err != nil {
					run.warn(f.mapping.Name, SeverityError, "item %d: transform error: %v", idx, err)
					coerced = ir.Null{}
				}
				v = coerced
			}
			values[i] = v
		}
		row := ir.NewRow(l.Name, names, values)
		if !row.IsEmpty() {
			run.rows = append(run.rows, row)
		}
	}
}
