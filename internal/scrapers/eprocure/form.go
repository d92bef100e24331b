package eprocure

import (
	"eprocure-backend/pkg/htmlutil"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// FormState is the name -> value set a browser would submit for a form.
// Names keep the order they were first set in so that the encoded body
// follows document order.
type FormState struct {
	names  []string
	values map[string]string
}

func NewFormState() *FormState {
	return &FormState{values: map[string]string{}}
}

// Set assigns value to name, a name that is already present keeps its
// position.
func (f *FormState) Set(name, value string) {
	if _, exists := f.values[name]; !exists {
		f.names = append(f.names, name)
	}
	f.values[name] = value
}

func (f *FormState) Get(name string) (string, bool) {
	value, ok := f.values[name]
	return value, ok
}

func (f *FormState) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

func (f *FormState) Len() int {
	return len(f.names)
}

func (f *FormState) Names() []string {
	return append([]string(nil), f.names...)
}

// Encode is the application/x-www-form-urlencoded body.
func (f *FormState) Encode() string {
	var b strings.Builder
	for i, name := range f.names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.values[name]))
	}
	return b.String()
}

// SerializeForm reconstructs the FormState of the first form matching
// selector, it reports false when there is no such form.
func SerializeForm(doc htmlutil.Node, selector string) (*FormState, bool) {
	form, ok := doc.First(selector)
	if !ok {
		return nil, false
	}
	return serializeFormNode(form), true
}

func serializeFormNode(form htmlutil.Node) *FormState {
	state := NewFormState()
	for _, control := range form.FindAll("input, select, textarea") {
		name, _ := control.Attr("name")
		if name == "" {
			continue
		}
		if _, disabled := control.Attr("disabled"); disabled {
			continue
		}

		switch control.Tag() {
		case "select":
			state.Set(name, selectedOptionValue(control))
		case "textarea":
			state.Set(name, control.Text())
		default:
			kind, _ := control.Attr("type")
			kind = strings.ToLower(strings.TrimSpace(kind))
			if kind == "checkbox" || kind == "radio" {
				if _, checked := control.Attr("checked"); !checked {
					continue
				}
				value, ok := control.Attr("value")
				if !ok {
					value = "on"
				}
				state.Set(name, value)
				continue
			}
			// hidden fields carry the server side view-state, they are echoed
			// back verbatim
			value, _ := control.Attr("value")
			state.Set(name, value)
		}
	}
	return state
}

// selectedOptionValue is the value of the selected option, falling back to
// the first option of a single select like a browser does.
func selectedOptionValue(sel htmlutil.Node) string {
	options := sel.FindAll("option")
	if len(options) == 0 {
		return ""
	}
	chosen := htmlutil.Node(nil)
	for _, option := range options {
		if _, selected := option.Attr("selected"); selected {
			chosen = option
			break
		}
	}
	if chosen == nil {
		if _, multiple := sel.Attr("multiple"); multiple {
			return ""
		}
		chosen = options[0]
	}
	if value, ok := chosen.Attr("value"); ok {
		return value
	}
	return htmlutil.NormalizeSpace(chosen.Text())
}

type submitControl struct {
	name  string
	value string
	// label is the lowercase visible caption (value or button text).
	label string
}

type submitRule struct {
	weight int
	match  func(c submitControl) bool
}

var tapestryIdRegex = regexp.MustCompile(`(?i)if_\d+`)

// submitRules score how likely a submit control is the primary search
// button, the highest total wins.
var submitRules = []submitRule{
	{
		weight: 10,
		match:  func(c submitControl) bool { return strings.Contains(c.label, "search") },
	},
	{
		weight: 5,
		match:  func(c submitControl) bool { return strings.Contains(strings.ToLower(c.name), "search") },
	},
	{
		weight: 2,
		match:  func(c submitControl) bool { return tapestryIdRegex.MatchString(c.name) },
	},
}

func (c submitControl) score() int {
	total := 0
	for _, rule := range submitRules {
		if rule.match(c) {
			total += rule.weight
		}
	}
	return total
}

// pickSubmitControl chooses the submit control a user would click, ties go
// to the control that comes first in the document.
func pickSubmitControl(form htmlutil.Node) (submitControl, bool) {
	candidates := []submitControl{}
	for _, el := range form.FindAll(`input[type="submit"][name], button[type="submit"][name]`) {
		name, _ := el.Attr("name")
		if name == "" {
			continue
		}
		value, hasValue := el.Attr("value")
		caption := value
		if !hasValue {
			caption = el.Text()
		}
		if !hasValue {
			value = "1"
		}
		candidates = append(candidates, submitControl{
			name:  name,
			value: value,
			label: strings.ToLower(htmlutil.NormalizeSpace(caption)),
		})
	}
	if len(candidates) == 0 {
		return submitControl{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score() > candidates[j].score()
	})
	return candidates[0], true
}

// keywordFields are the known names of the free-text search field, in
// order of preference.
var keywordFields = []string{"workItemTitle", "SearchDescription"}

// injectKeyword writes keyword into the known search field, else into the
// first free-text input that is not a framework field.
func injectKeyword(form htmlutil.Node, state *FormState, keyword string) {
	for _, name := range keywordFields {
		if state.Has(name) {
			state.Set(name, keyword)
			return
		}
	}

	for _, input := range form.FindAll(`input[type="text"][name], input:not([type])[name]`) {
		name, _ := input.Attr("name")
		if name == "" || strings.HasPrefix(name, "t:") {
			continue
		}
		state.Set(name, keyword)
		return
	}

	state.Set("SearchDescription", keyword)
}

// defaultTenderType selects "open tender" when the form has no usable
// tender type, the portal rejects searches without one.
func defaultTenderType(state *FormState) {
	value, ok := state.Get("TenderType")
	if !ok || strings.TrimSpace(value) == "" || value == "0" {
		state.Set("TenderType", "1")
	}
}

// applySubmitControl records the chosen control as if it had been clicked.
func applySubmitControl(state *FormState, submit submitControl) {
	if !state.Has(submit.name) {
		state.Set(submit.name, submit.value)
	}
	if state.Has("submitname") {
		state.Set("submitname", submit.name)
	}
}
