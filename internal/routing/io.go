package routing

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"alertbus/pkg/errors"
)

// ExportRules returns copies of all rules in registration order
func (r *AlertRouter) ExportRules() []Rule {
	rules, _ := r.snapshot()
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, *rule.clone())
	}
	return out
}

// ExportJSON serializes the rule set
func (r *AlertRouter) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r.ExportRules(), "", "  ")
}

// ImportRules loads a rule set. Every rule is validated first and nothing is applied
// unless all of them are valid. With replace the existing rules are cleared;
// otherwise rules with an existing id overwrite it.
func (r *AlertRouter) ImportRules(rules []Rule, replace bool) (int, error) {
	prepared := make([]*Rule, 0, len(rules))
	var errs errors.MultiError
	for i := range rules {
		c := rules[i].clone()
		if err := c.prepare(); err != nil {
			errs.Add(errors.Wrapf(err, "rule #%d", i))
			continue
		}
		prepared = append(prepared, c)
	}
	if err := errs.ToError(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if replace {
		r.rules = make(map[string]*Rule, len(prepared))
		r.order = nil
	}
	for _, c := range prepared {
		if c.ID == "" {
			c.ID = r.nextIDLocked()
		}
		r.putLocked(c)
	}

	r.log.Infow("Routing rules imported", "count", len(prepared), "replace", replace)
	return len(prepared), nil
}

// ImportJSON decodes and imports a JSON rule list
func (r *AlertRouter) ImportJSON(data []byte, replace bool) (int, error) {
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "decode rules: %v", err)
	}
	return r.ImportRules(rules, replace)
}

// ImportYAML accepts the same rule list written as YAML. Keys follow the JSON form.
func (r *AlertRouter) ImportYAML(data []byte, replace bool) (int, error) {
	var doc []map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "decode rules: %v", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "convert rules: %v", err)
	}
	return r.ImportJSON(asJSON, replace)
}
