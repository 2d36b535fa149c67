// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gauntlet-run/gauntlet/internal/container"
)

// StructureValidator checks everything about a suite the schema alone
// cannot express: name uniqueness, reference integrity (defaults,
// depends_on), dependency spec syntax, placeholder grammar, installer
// template plausibility, and the dependency/command consistency rule.
//
// The same validator runs behind Parse (for both file formats) and behind
// `gauntlet check`, so CUE and TOML suites are held to identical rules.
type StructureValidator struct{}

// NewStructureValidator creates a new StructureValidator.
func NewStructureValidator() *StructureValidator {
	return &StructureValidator{}
}

// Name returns the validator name.
func (v *StructureValidator) Name() ValidatorName { return "structure" }

// Validate checks the suite structure and collects all findings.
func (v *StructureValidator) Validate(ctx *ValidationContext, suite *Suite) []ValidationError {
	var findings []ValidationError

	if len(suite.Envs) == 0 {
		findings = append(findings, v.errorf(NewFieldPath().Suite(),
			"suite at %s declares no environments (missing required 'envs' list)", ctx.FilePath))
		return findings
	}

	findings = append(findings, v.validateSuiteLevel(ctx, suite)...)

	for i := range suite.Envs {
		findings = append(findings, v.validateEnv(ctx, suite, &suite.Envs[i])...)
	}

	findings = append(findings, v.validateDependsOnGraph(suite)...)

	return findings
}

func (v *StructureValidator) validateSuiteLevel(ctx *ValidationContext, suite *Suite) []ValidationError {
	var findings []ValidationError
	root := func() *FieldPath { return NewFieldPath().Suite() }

	if suite.Name != "" && strings.TrimSpace(suite.Name) == "" {
		findings = append(findings, v.errorf(root().Field("name"), "suite name must not be whitespace-only"))
	}

	// Duplicate environment names break selection and the work-area layout.
	seen := map[EnvName]bool{}
	for i := range suite.Envs {
		name := suite.Envs[i].Name
		if seen[name] {
			findings = append(findings, v.errorf(NewFieldPath().Field("envs").Index(i),
				"duplicate environment name %q", name))
		}
		seen[name] = true
	}

	seenDefault := map[EnvName]bool{}
	for i, name := range suite.Defaults {
		if suite.FindEnv(name) == nil {
			findings = append(findings, v.errorf(root().Field("defaults").Index(i),
				"default environment %q is not declared", name))
		}
		if seenDefault[name] {
			findings = append(findings, v.warningf(root().Field("defaults").Index(i),
				"environment %q listed more than once", name))
		}
		seenDefault[name] = true
	}

	findings = append(findings, v.validatePatterns(suite.PassEnv, root().Field("pass_env"))...)
	findings = append(findings, v.validatePatterns(suite.DenyEnv, root().Field("deny_env"))...)
	findings = append(findings, v.validateEnvSettings(suite.Env, root().Field("env"))...)

	if suite.InstallCommand != "" {
		findings = append(findings, v.validateInstallTemplate(suite.InstallCommand, root().Field("install_command"))...)
	}

	return findings
}

func (v *StructureValidator) validateEnv(ctx *ValidationContext, suite *Suite, env *Environment) []ValidationError {
	var findings []ValidationError
	at := func() *FieldPath { return NewFieldPath().Env(env.Name) }

	if valid, errs := env.Name.IsValid(); !valid {
		findings = append(findings, v.errorf(at(), "%s", errs[0].Error()))
	}

	seenPlatform := map[Platform]bool{}
	for i, p := range env.Platforms {
		if valid, errs := p.IsValid(); !valid {
			findings = append(findings, v.errorf(at().Field("platforms").Index(i), "%s", errs[0].Error()))
			continue
		}
		if seenPlatform[p] {
			findings = append(findings, v.warningf(at().Field("platforms").Index(i),
				"platform %q listed more than once", p))
		}
		seenPlatform[p] = true
	}

	findings = append(findings, v.validateRuntime(ctx, env.Runtime, at())...)

	for i, dep := range env.Deps {
		if _, err := dep.Parse(); err != nil {
			findings = append(findings, v.errorf(at().Field("deps").Index(i), "%s", err.Error()))
		}
	}

	findings = append(findings, v.validatePatterns(env.PassEnv, at().Field("pass_env"))...)
	findings = append(findings, v.validatePatterns(env.DenyEnv, at().Field("deny_env"))...)

	if valid, errs := env.Inherit.IsValid(); !valid {
		findings = append(findings, v.errorf(at().Field("inherit"), "%s", errs[0].Error()))
	}

	findings = append(findings, v.validateEnvSettings(env.Env, at().Field("env"))...)

	if valid, errs := env.WorkDir.IsValid(); !valid {
		findings = append(findings, v.errorf(at().Field("workdir"), "%s", errs[0].Error()))
	} else if env.WorkDir.IsSet() && filepath.IsAbs(string(env.WorkDir)) {
		findings = append(findings, v.warningf(at().Field("workdir"),
			"absolute workdir %q ties the suite to one machine layout", env.WorkDir))
	}

	if env.InstallCommand != "" {
		findings = append(findings, v.validateInstallTemplate(env.InstallCommand, at().Field("install_command"))...)
	}

	if env.SkipInstall && len(env.Deps) > 0 {
		findings = append(findings, v.warningf(at().Field("skip_install"),
			"deps are declared but skip_install disables the install phase"))
	}

	if env.HasInstallPhase() && !ctx.AssumeInstallerConfigured {
		if suite.EffectiveInstallCommand(env, ctx.DefaultInstallCommand) == "" {
			findings = append(findings, v.errorf(at().Field("deps"),
				"environment declares deps but no install_command is configured (environment, suite, or app config)"))
		}
	}

	seenDep := map[EnvName]bool{}
	for i, name := range env.DependsOn {
		if name == env.Name {
			findings = append(findings, v.errorf(at().Field("depends_on").Index(i),
				"environment depends on itself"))
			continue
		}
		if suite.FindEnv(name) == nil {
			findings = append(findings, v.errorf(at().Field("depends_on").Index(i),
				"dependency environment %q is not declared", name))
		}
		if seenDep[name] {
			findings = append(findings, v.warningf(at().Field("depends_on").Index(i),
				"environment %q listed more than once", name))
		}
		seenDep[name] = true
	}

	if _, err := env.ParsedTimeout(); err != nil {
		findings = append(findings, v.errorf(at().Field("timeout"), "%s", err.Error()))
	}

	findings = append(findings, v.validateCommands(ctx, env, at)...)

	return findings
}

func (v *StructureValidator) validateRuntime(ctx *ValidationContext, spec *RuntimeSpec, at *FieldPath) []ValidationError {
	if spec == nil {
		return nil
	}

	var findings []ValidationError
	path := at.Field("runtime")

	if valid, errs := spec.Kind.IsValid(); !valid {
		findings = append(findings, v.errorf(path, "%s", errs[0].Error()))
		return findings
	}

	if spec.Kind == RuntimeContainer {
		if spec.Image != "" && spec.Containerfile != "" {
			findings = append(findings, v.errorf(path,
				"image and containerfile are mutually exclusive"))
		}
		if spec.Image == "" && spec.Containerfile == "" {
			if _, ok := container.FindDefaultContainerfile(ctx.SuiteDir); !ok {
				findings = append(findings, v.errorf(path,
					"container environment declares neither image nor containerfile, and no Containerfile or Dockerfile exists next to the suite file"))
			}
		}
		for i, vol := range spec.Volumes {
			if err := validateVolumeSpec(vol); err != nil {
				findings = append(findings, v.errorf(NewFieldPath().Field(path.String()+".volumes").Index(i),
					"%s", err.Error()))
			}
		}
		for i, port := range spec.Ports {
			if err := validatePortSpec(port); err != nil {
				findings = append(findings, v.errorf(NewFieldPath().Field(path.String()+".ports").Index(i),
					"%s", err.Error()))
			}
		}
		return findings
	}

	// Container-only knobs on another runtime are almost always a
	// half-edited file; fail loudly rather than ignore them.
	if spec.Image != "" || spec.Containerfile != "" || len(spec.Volumes) > 0 ||
		len(spec.Ports) > 0 || spec.HostAccess {
		findings = append(findings, v.errorf(path,
			"image, containerfile, volumes, ports, and host_access require kind \"container\" (got %q)", spec.Kind))
	}

	return findings
}

func (v *StructureValidator) validateEnvSettings(settings *EnvSettings, at *FieldPath) []ValidationError {
	if settings == nil {
		return nil
	}

	var findings []ValidationError
	base := at.String()

	for i, f := range settings.Files {
		if valid, errs := f.IsValid(); !valid {
			findings = append(findings, v.errorf(NewFieldPath().Field(base+".files").Index(i),
				"%s", errs[0].Error()))
		}
	}
	for name := range settings.Vars {
		if err := name.Validate(); err != nil {
			findings = append(findings, v.errorf(NewFieldPath().Field(base+".vars"),
				"%s", err.Error()))
		}
	}

	return findings
}

func (v *StructureValidator) validatePatterns(patterns []EnvPattern, at *FieldPath) []ValidationError {
	var findings []ValidationError
	for i, p := range patterns {
		if valid, errs := p.IsValid(); !valid {
			findings = append(findings, v.errorf(NewFieldPath().Field(at.String()).Index(i),
				"%s", errs[0].Error()))
		}
	}
	return findings
}

// installTemplatePlaceholders are the names an installer template may use.
var installTemplatePlaceholders = map[string]bool{
	PlaceholderPackages: true,
	PlaceholderEnvName:  true,
	PlaceholderEnvDir:   true,
	PlaceholderSuiteDir: true,
}

func (v *StructureValidator) validateInstallTemplate(tmpl string, at *FieldPath) []ValidationError {
	var findings []ValidationError

	names, err := Placeholders(tmpl)
	if err != nil {
		return append(findings, v.errorf(at, "%s", err.Error()))
	}

	hasPackages := false
	for _, name := range names {
		if !installTemplatePlaceholders[name] {
			findings = append(findings, v.errorf(at,
				"placeholder {%s} is not valid in an install command", name))
		}
		if name == PlaceholderPackages {
			hasPackages = true
		}
	}
	if !hasPackages {
		findings = append(findings, v.errorf(at,
			"install command must reference {packages}, otherwise deps are never handed to it"))
	}

	return findings
}

// commandPlaceholders are the names a command line may use.
var commandPlaceholders = map[string]bool{
	PlaceholderPosArgs:  true,
	PlaceholderEnvName:  true,
	PlaceholderEnvDir:   true,
	PlaceholderSuiteDir: true,
}

func (v *StructureValidator) validateCommands(ctx *ValidationContext, env *Environment, at func() *FieldPath) []ValidationError {
	var findings []ValidationError

	if len(env.Commands) == 0 {
		return append(findings, v.errorf(at(),
			"environment declares no commands (missing required 'commands' list)"))
	}

	for i, cmd := range env.Commands {
		if valid, errs := cmd.IsValid(); !valid {
			findings = append(findings, v.errorf(at().Command(i), "%s", errs[0].Error()))
			continue
		}

		names, err := Placeholders(cmd.Script())
		if err != nil {
			findings = append(findings, v.errorf(at().Command(i), "%s", err.Error()))
			continue
		}
		for _, name := range names {
			if !commandPlaceholders[name] {
				findings = append(findings, v.errorf(at().Command(i),
					"placeholder {%s} is not valid in a command", name))
			}
		}

		if finding := v.checkCommandProgram(ctx, env, i, cmd, at); finding != nil {
			findings = append(findings, *finding)
		}
	}

	return findings
}

// shellBuiltins and interpreterNames anchor the dependency/command
// consistency rule: programs in these sets never need a declared dep.
var (
	shellBuiltins = map[string]bool{
		".": true, ":": true, "[": true, "cd": true, "echo": true,
		"eval": true, "exec": true, "exit": true, "export": true,
		"false": true, "printf": true, "pwd": true, "read": true,
		"set": true, "test": true, "trap": true, "true": true,
		"type": true, "ulimit": true, "umask": true, "unset": true,
		"wait": true,
	}

	interpreterNames = map[string]bool{
		"python": true, "python2": true, "python3": true,
		"sh": true, "bash": true, "dash": true, "zsh": true,
		"pwsh": true, "powershell": true, "cmd": true,
	}
)

// checkCommandProgram ties a command's program back to the declared
// dependency list. The mapping from package to binary is a heuristic, so an
// unmatched program is a warning, not an error: the environment may still
// work, but nothing in the suite says where the program comes from.
func (v *StructureValidator) checkCommandProgram(ctx *ValidationContext, env *Environment, i int, cmd CommandLine, at func() *FieldPath) *ValidationError {
	program := commandProgram(cmd.Script())
	if program == "" {
		return nil
	}

	if shellBuiltins[program] || interpreterNames[program] {
		return nil
	}

	norm := normalizeProgramName(program)
	for _, dep := range env.Deps {
		if normalizeProgramName(dep.ProvidedName()) == norm {
			return nil
		}
	}

	lookPath := ctx.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath(program); err == nil {
		return nil
	}

	finding := v.warningf(at().Command(i),
		"program %q is not provided by any declared dependency and was not found on PATH", program)
	return &finding
}

// commandProgram extracts the word a shell would execute, or "" when the
// line is too dynamic to reason about (leading placeholder, variable,
// quoting, or an explicit path).
func commandProgram(script string) string {
	fields := strings.Fields(script)
	if len(fields) == 0 {
		return ""
	}
	first := fields[0]
	if strings.ContainsAny(first, "{}$\"'`") {
		return ""
	}
	if strings.ContainsAny(first, `/\`) {
		return ""
	}
	// KEY=value prefixes shift the program one word right.
	if strings.Contains(first, "=") {
		if len(fields) < 2 {
			return ""
		}
		return commandProgram(strings.Join(fields[1:], " "))
	}
	return first
}

func normalizeProgramName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	return name
}

// validateDependsOnGraph rejects ordering cycles. A cycle would deadlock
// the parallel scheduler, and even serially it means the declared order is
// unsatisfiable.
func (v *StructureValidator) validateDependsOnGraph(suite *Suite) []ValidationError {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // finished
	)

	color := make(map[EnvName]int, len(suite.Envs))
	var findings []ValidationError

	var visit func(name EnvName, path []EnvName)
	visit = func(name EnvName, path []EnvName) {
		env := suite.FindEnv(name)
		if env == nil {
			return // missing targets are reported per-env
		}
		color[name] = gray
		path = append(path, name)

		for _, next := range env.DependsOn {
			switch color[next] {
			case white:
				visit(next, path)
			case gray:
				findings = append(findings, v.errorf(NewFieldPath().Env(name).Field("depends_on"),
					"dependency cycle: %s", formatCycle(path, next)))
			}
		}
		color[name] = black
	}

	for i := range suite.Envs {
		if color[suite.Envs[i].Name] == white {
			visit(suite.Envs[i].Name, nil)
		}
	}

	return findings
}

func formatCycle(path []EnvName, repeat EnvName) string {
	start := 0
	for i, n := range path {
		if n == repeat {
			start = i
			break
		}
	}
	var b strings.Builder
	for _, n := range path[start:] {
		b.WriteString(string(n))
		b.WriteString(" -> ")
	}
	b.WriteString(string(repeat))
	return b.String()
}

func validateVolumeSpec(spec string) error {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return fmt.Errorf("invalid volume %q (want \"host:container\" or \"host:container:ro\")", spec)
	}
	if strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return fmt.Errorf("invalid volume %q: host and container paths must be non-empty", spec)
	}
	if len(parts) == 3 && parts[2] != "ro" && parts[2] != "rw" {
		return fmt.Errorf("invalid volume %q: mode must be \"ro\" or \"rw\"", spec)
	}
	return nil
}

func validatePortSpec(spec string) error {
	hostPart, proto, _ := strings.Cut(spec, "/")
	if proto != "" && proto != "tcp" && proto != "udp" {
		return fmt.Errorf("invalid port %q: protocol must be \"tcp\" or \"udp\"", spec)
	}
	host, cont, ok := strings.Cut(hostPart, ":")
	if !ok {
		return fmt.Errorf("invalid port %q (want \"host:container[/proto]\")", spec)
	}
	for _, p := range []string{host, cont} {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("invalid port %q: %q is not a port number", spec, p)
		}
	}
	return nil
}

func (v *StructureValidator) errorf(at *FieldPath, format string, args ...any) ValidationError {
	return ValidationError{
		Validator: v.Name(),
		Field:     at.String(),
		Message:   fmt.Sprintf(format, args...),
		Severity:  SeverityError,
	}
}

func (v *StructureValidator) warningf(at *FieldPath, format string, args ...any) ValidationError {
	return ValidationError{
		Validator: v.Name(),
		Field:     at.String(),
		Message:   fmt.Sprintf(format, args...),
		Severity:  SeverityWarning,
	}
}
