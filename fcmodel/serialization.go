package fcmodel

import (
	"encoding/base64"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// InitialFetchResponse is the wire shape returned by the initial full fetch for one
// namespace: a starting cursor plus the complete list of families.
type InitialFetchResponse struct {
	Cursor      string
	FigFamilies []FigFamily
}

// UpdateFetchResponse is the wire shape returned by an incremental fetch: the advanced
// cursor plus the families changed since the request cursor. An empty family list with
// the same cursor means nothing changed.
type UpdateFetchResponse struct {
	Cursor      string
	FigFamilies []FigFamily
}

// ParseInitialFetchResponse parses the JSON body of an initial fetch response.
func ParseInitialFetchResponse(data []byte) (InitialFetchResponse, error) {
	r := jreader.NewReader(data)
	cursor, families := readFetchResponse(&r)
	return InitialFetchResponse{Cursor: cursor, FigFamilies: families}, r.Error()
}

// ParseUpdateFetchResponse parses the JSON body of an update fetch response.
func ParseUpdateFetchResponse(data []byte) (UpdateFetchResponse, error) {
	r := jreader.NewReader(data)
	cursor, families := readFetchResponse(&r)
	return UpdateFetchResponse{Cursor: cursor, FigFamilies: families}, r.Error()
}

// ParseFigFamilies parses a JSON array of fig families.
func ParseFigFamilies(data []byte) ([]FigFamily, error) {
	r := jreader.NewReader(data)
	families := ReadFigFamiliesArray(&r)
	return families, r.Error()
}

func readFetchResponse(r *jreader.Reader) (string, []FigFamily) {
	var cursor string
	var families []FigFamily
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "cursor":
			cursor = r.String()
		case "figFamilies":
			families = ReadFigFamiliesArray(r)
		default:
			_ = r.SkipValue()
		}
	}
	return cursor, families
}

// ReadFigFamiliesArray reads a JSON array of fig families from an open reader. It is
// exported so that other payloads embedding family lists (such as vault snapshots) can
// share the parsing logic.
func ReadFigFamiliesArray(r *jreader.Reader) []FigFamily {
	var ret []FigFamily
	for arr := r.ArrayOrNull(); arr.Next(); {
		ret = append(ret, ReadFigFamily(r))
	}
	return ret
}

// ReadFigFamily reads a single fig family object from an open reader.
func ReadFigFamily(r *jreader.Reader) FigFamily {
	var f FigFamily
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "namespace":
			f.Namespace = r.String()
		case "key":
			f.Key = r.String()
		case "defaultVersion":
			if v, nonNull := r.StringOrNull(); nonNull {
				f.DefaultVersion = v
			}
		case "figs":
			for arr := r.ArrayOrNull(); arr.Next(); {
				f.Figs = append(f.Figs, readFig(r))
			}
		case "rules":
			for arr := r.ArrayOrNull(); arr.Next(); {
				f.Rules = append(f.Rules, readRule(r))
			}
		default:
			_ = r.SkipValue()
		}
	}
	return f
}

func readFig(r *jreader.Reader) Fig {
	var fig Fig
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "id":
			fig.ID = r.String()
		case "version":
			fig.Version = r.String()
		case "payload":
			fig.Payload = readBase64(r)
		case "encrypted":
			fig.Encrypted = r.Bool()
		case "keyId":
			if v, nonNull := r.StringOrNull(); nonNull {
				fig.KeyID = v
			}
		case "wrappedDek":
			fig.WrappedDEK = readBase64(r)
		default:
			_ = r.SkipValue()
		}
	}
	return fig
}

func readRule(r *jreader.Reader) Rule {
	var rule Rule
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "targetVersion":
			rule.TargetVersion = r.String()
		case "conditions":
			for arr := r.ArrayOrNull(); arr.Next(); {
				rule.Conditions = append(rule.Conditions, readCondition(r))
			}
		default:
			_ = r.SkipValue()
		}
	}
	return rule
}

func readCondition(r *jreader.Reader) Condition {
	var c Condition
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "variable":
			c.Variable = r.String()
		case "operator":
			c.Op = Operator(r.String())
		case "values":
			for arr := r.ArrayOrNull(); arr.Next(); {
				c.Values = append(c.Values, r.String())
			}
		default:
			_ = r.SkipValue()
		}
	}
	return c
}

func readBase64(r *jreader.Reader) []byte {
	s, nonNull := r.StringOrNull()
	if !nonNull || s == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		r.AddError(err)
		return nil
	}
	return data
}

// WriteUpdateFetchRequest produces the JSON body of an update fetch request.
// environmentID may be empty, in which case it is omitted.
func WriteUpdateFetchRequest(namespace, cursor, environmentID string) ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("namespace").String(namespace)
	obj.Name("cursor").String(cursor)
	if environmentID != "" {
		obj.Name("environmentId").String(environmentID)
	}
	obj.End()
	return w.Bytes(), w.Error()
}

// WriteFigFamiliesJSON serializes a list of families to a JSON array, the inverse of
// ParseFigFamilies. Used by test fixtures and file-based data sources.
func WriteFigFamiliesJSON(families []FigFamily) ([]byte, error) {
	w := jwriter.NewWriter()
	writeFigFamiliesArray(&w, families)
	return w.Bytes(), w.Error()
}

// WriteFetchResponseJSON serializes a cursor plus family list in the fetch response wire
// shape. Used by test fixtures that simulate the server.
func WriteFetchResponseJSON(cursor string, families []FigFamily) ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("cursor").String(cursor)
	writeFigFamiliesArray(obj.Name("figFamilies"), families)
	obj.End()
	return w.Bytes(), w.Error()
}

func writeFigFamiliesArray(w *jwriter.Writer, families []FigFamily) {
	arr := w.Array()
	for _, f := range families {
		writeFigFamily(w, f)
	}
	arr.End()
}

func writeFigFamily(w *jwriter.Writer, f FigFamily) {
	obj := w.Object()
	obj.Name("namespace").String(f.Namespace)
	obj.Name("key").String(f.Key)
	if f.DefaultVersion != "" {
		obj.Name("defaultVersion").String(f.DefaultVersion)
	}
	figs := obj.Name("figs").Array()
	for _, fig := range f.Figs {
		writeFig(w, fig)
	}
	figs.End()
	if len(f.Rules) > 0 {
		rules := obj.Name("rules").Array()
		for _, rule := range f.Rules {
			writeRule(w, rule)
		}
		rules.End()
	}
	obj.End()
}

func writeFig(w *jwriter.Writer, fig Fig) {
	obj := w.Object()
	obj.Name("id").String(fig.ID)
	obj.Name("version").String(fig.Version)
	obj.Name("payload").String(base64.StdEncoding.EncodeToString(fig.Payload))
	if fig.Encrypted {
		obj.Name("encrypted").Bool(true)
		obj.Name("keyId").String(fig.KeyID)
		obj.Name("wrappedDek").String(base64.StdEncoding.EncodeToString(fig.WrappedDEK))
	}
	obj.End()
}

func writeRule(w *jwriter.Writer, rule Rule) {
	obj := w.Object()
	obj.Name("targetVersion").String(rule.TargetVersion)
	conds := obj.Name("conditions").Array()
	for _, c := range rule.Conditions {
		cObj := w.Object()
		cObj.Name("variable").String(c.Variable)
		cObj.Name("operator").String(string(c.Op))
		values := cObj.Name("values").Array()
		for _, v := range c.Values {
			w.String(v)
		}
		values.End()
		cObj.End()
	}
	conds.End()
	obj.End()
}
