package corebind

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/relaycore/corebind/internal/graph"
)

// ValidationIssue is one validator finding.
type ValidationIssue struct {
	Rule    string
	Message string
	Value   any
	Field   string
}

// ValidationReport is the validator's side-effect-free output: never
// thrown, always returned from Validate.
type ValidationReport struct {
	IsValid   bool
	Errors    []ValidationIssue
	Warnings  []ValidationIssue
	ServiceID ServiceID
}

// securityDenylist names classes rejected outright by security validation.
var securityDenylist = map[string]bool{
	"shell_exec_wrapper": true,
	"os/exec.Command":    true,
	"eval":               true,
}

// sensitiveConfigKeys are matched case-insensitively as substrings of a
// config key.
var sensitiveConfigKeys = []string{"password", "secret", "key", "token", "api_key", "private_key"}

// Validator runs pre-flight checks over a DefinitionStore. Validation never
// instantiates services.
type Validator struct {
	structValidator *validator.Validate
}

// NewValidator returns a ready-to-use Validator.
func NewValidator() *Validator {
	return &Validator{structValidator: validator.New()}
}

// Validate runs every enabled rule family over store and returns one
// ValidationReport per registered ServiceID plus the aggregate graph-level
// findings (cycles) reported against every implicated id.
func (v *Validator) Validate(store *DefinitionStore) []ValidationReport {
	defs := store.All()
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	seen := make(map[ServiceID]bool, len(defs))
	byID := make(map[ServiceID]ServiceDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	g := graph.New()
	for _, d := range defs {
		g.AddNode(string(d.ID))
	}
	for _, d := range defs {
		for _, dep := range d.Dependencies {
			g.AddEdge(string(d.ID), string(dep))
		}
	}
	cycles := g.DetectCycles()
	cyclic := make(map[ServiceID]bool)
	for _, cycle := range cycles {
		for _, id := range cycle {
			cyclic[ServiceID(id)] = true
		}
	}

	dependentCount := make(map[ServiceID]int)
	for _, d := range defs {
		for _, dep := range d.Dependencies {
			dependentCount[dep]++
		}
	}

	var reports []ValidationReport
	for _, d := range defs {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		report := ValidationReport{IsValid: true, ServiceID: d.ID}

		// Business rules.
		v.checkUniqueServiceID(d, defs, &report)
		v.checkRequiredTags(d, &report)
		v.checkValidEnvironment(d, &report)

		// Dependency validation.
		v.checkDependencyExists(d, byID, &report)
		if cyclic[d.ID] {
			report.Errors = append(report.Errors, ValidationIssue{
				Rule:    "NoCircularDependencies",
				Message: fmt.Sprintf("%s participates in a dependency cycle", d.ID),
				Field:   "dependencies",
			})
		}
		v.checkDependencyAvailability(d, byID, &report)

		// Attribute validation (struct-tag rules on Config values).
		v.checkAttributes(d, &report)

		// Security validation.
		v.checkSecurity(d, &report)

		// Performance warnings.
		v.checkPerformance(d, dependentCount[d.ID], &report)

		report.IsValid = len(report.Errors) == 0
		reports = append(reports, report)
	}

	reports = append(reports, v.checkDanglingAliases(store)...)
	return reports
}

// checkDanglingAliases proactively flags every alias whose chain does not
// resolve to a registered binding, ahead of the ServiceNotFoundError
// spec.md §6 mandates if and when the alias is actually looked up.
func (v *Validator) checkDanglingAliases(store *DefinitionStore) []ValidationReport {
	aliases := store.Aliases()
	ids := make([]ServiceID, 0, len(aliases))
	for alias := range aliases {
		ids = append(ids, alias)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var reports []ValidationReport
	for _, alias := range ids {
		if _, _, err := store.Resolve(alias); err != nil {
			reports = append(reports, ValidationReport{
				ServiceID: alias,
				Errors: []ValidationIssue{{
					Rule:    "NoDanglingAliases",
					Message: fmt.Sprintf("%s: %v (target %s)", alias, ErrDanglingAlias, aliases[alias]),
					Field:   "alias",
					Value:   aliases[alias],
				}},
			})
		}
	}
	return reports
}

func (v *Validator) checkUniqueServiceID(d ServiceDefinition, all []ServiceDefinition, report *ValidationReport) {
	count := 0
	for _, other := range all {
		if other.ID == d.ID {
			count++
		}
	}
	if count > 1 {
		report.Errors = append(report.Errors, ValidationIssue{
			Rule:    "UniqueServiceId",
			Message: fmt.Sprintf("%s is registered more than once", d.ID),
			Field:   "id",
		})
	}
}

func (v *Validator) checkRequiredTags(d ServiceDefinition, report *ValidationReport) {
	if len(d.Tags) == 0 {
		report.Errors = append(report.Errors, ValidationIssue{
			Rule:    "RequiredTags",
			Message: fmt.Sprintf("%s has no tags", d.ID),
			Field:   "tags",
		})
	}
}

func (v *Validator) checkValidEnvironment(d ServiceDefinition, report *ValidationReport) {
	if !d.Environment.IsValid() {
		report.Errors = append(report.Errors, ValidationIssue{
			Rule:    "ValidEnvironment",
			Message: fmt.Sprintf("%s has invalid environment %q", d.ID, d.Environment),
			Value:   d.Environment,
			Field:   "environment",
		})
	}
}

func (v *Validator) checkDependencyExists(d ServiceDefinition, byID map[ServiceID]ServiceDefinition, report *ValidationReport) {
	for _, dep := range d.Dependencies {
		if _, ok := byID[dep]; !ok {
			report.Errors = append(report.Errors, ValidationIssue{
				Rule:    "DependencyExists",
				Message: fmt.Sprintf("%s depends on unregistered %s", d.ID, dep),
				Value:   dep,
				Field:   "dependencies",
			})
		}
	}
}

func (v *Validator) checkDependencyAvailability(d ServiceDefinition, byID map[ServiceID]ServiceDefinition, report *ValidationReport) {
	if d.Environment == "" {
		return
	}
	for _, dep := range d.Dependencies {
		depDef, ok := byID[dep]
		if !ok || depDef.Environment == "" {
			continue
		}
		if depDef.Environment != d.Environment {
			report.Errors = append(report.Errors, ValidationIssue{
				Rule:    "DependencyAvailability",
				Message: fmt.Sprintf("%s (%s) depends on %s (%s)", d.ID, d.Environment, dep, depDef.Environment),
				Field:   "dependencies",
			})
		}
	}
}

func (v *Validator) checkAttributes(d ServiceDefinition, report *ValidationReport) {
	for key, value := range d.Config {
		sv, ok := value.(string)
		if !ok {
			continue
		}
		if err := v.structValidator.Var(sv, "required"); err != nil {
			report.Errors = append(report.Errors, ValidationIssue{
				Rule:    "attribute:required",
				Message: fmt.Sprintf("%s config key %q is empty", d.ID, key),
				Field:   key,
			})
		}
	}
}

// ValidateContainerConfig evaluates validate tags declared on
// ContainerConfig (e.g. MaxResolutionDepth's "gte=0").
func (v *Validator) ValidateContainerConfig(cfg ContainerConfig) error {
	return v.structValidator.Struct(cfg)
}

// ValidateTelemetryConfig evaluates validate tags declared on
// TelemetryConfig (e.g. SamplingRate's "gte=0,lte=1").
func (v *Validator) ValidateTelemetryConfig(cfg TelemetryConfig) error {
	return v.structValidator.Struct(cfg)
}

func (v *Validator) checkSecurity(d ServiceDefinition, report *ValidationReport) {
	if securityDenylist[d.Class] {
		report.Errors = append(report.Errors, ValidationIssue{
			Rule:    "SecurityPolicy",
			Message: fmt.Sprintf("%s uses denylisted class %q", d.ID, d.Class),
			Field:   "class",
		})
	}
	for key := range d.Config {
		lower := strings.ToLower(key)
		for _, sensitive := range sensitiveConfigKeys {
			if strings.Contains(lower, sensitive) {
				report.Warnings = append(report.Warnings, ValidationIssue{
					Rule:    "SensitiveDataProtection",
					Message: fmt.Sprintf("%s config key %q looks sensitive", d.ID, key),
					Field:   key,
				})
				break
			}
		}
	}
}

func (v *Validator) checkPerformance(d ServiceDefinition, dependents int, report *ValidationReport) {
	if d.ComplexityScore > 15 {
		report.Warnings = append(report.Warnings, ValidationIssue{
			Rule:    "HighComplexity",
			Message: fmt.Sprintf("%s has complexity score %d", d.ID, d.ComplexityScore),
			Field:   "complexityScore",
		})
	}
	if len(d.Dependencies) > 10 {
		report.Warnings = append(report.Warnings, ValidationIssue{
			Rule:    "TooManyDependencies",
			Message: fmt.Sprintf("%s has %d dependencies", d.ID, len(d.Dependencies)),
			Field:   "dependencies",
		})
	}
	if d.Lifetime == Singleton && dependents > 20 {
		report.Warnings = append(report.Warnings, ValidationIssue{
			Rule:    "HighFanIn",
			Message: fmt.Sprintf("%s has %d dependents", d.ID, dependents),
			Field:   "dependents",
		})
	}
}
