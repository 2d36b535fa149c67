// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	SuiteNotFoundId Id = iota + 1
	SuiteParseErrorId
	EnvNotFoundId
	RuntimeNotAvailableId
	ContainerEngineNotFoundId
	ContainerfileNotFoundId
	CommandFailedId
	InstallFailedId
	ConfigLoadFailedId
	DependencyCycleId
	ShellNotFoundId
	PermissionDeniedId
	PlatformNotSupportedId
	CallbackStartFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	suiteNotFoundIssue = &Issue{
		id: SuiteNotFoundId,
		mdMsg: `
# No suite file found!

We searched for a suite file but couldn't find one between here and the
filesystem root.

## Search order:
1. gauntlet.cue in the current directory
2. gauntlet.toml in the current directory
3. The same pair in each parent directory, up to the root

## Things you can try:
- Create a suite file in your project root:
~~~
$ gauntlet init
~~~

- Or point at an explicit file:
~~~
$ gauntlet run --file path/to/gauntlet.cue
~~~

## Example suite structure:
~~~cue
envs: [
  {
    name: "unit"
    deps: ["pytest"]
    commands: ["pytest {posargs}"]
  },
  {
    name: "lint"
    deps: ["flake8"]
    commands: ["flake8 src/"]
  },
]
~~~`,
	}

	suiteParseErrorIssue = &Issue{
		id: SuiteParseErrorId,
		mdMsg: `
# Failed to parse suite file!

Your suite file contains syntax errors or invalid configuration.

## Common issues:
- Invalid CUE or TOML syntax (missing quotes, braces, brackets)
- Unknown field names
- Invalid values for known fields (bad env names, empty commands)
- An environment without a commands list

## Things you can try:
- Check the error message above for the specific line/column
- Run the structural checker for the full finding list:
~~~
$ gauntlet check
~~~

## Example of a valid environment:
~~~cue
envs: [
  {
    name: "unit"
    description: "fast unit tests"
    deps: ["pytest", "mock==1.3.0"]
    pass_env: ["CI", "SSH_AUTH_SOCK"]
    commands: ["pytest tests/unit {posargs}"]
  }
]
~~~`,
	}

	envNotFoundIssue = &Issue{
		id: EnvNotFoundId,
		mdMsg: `
# Environment not found!

The environment you asked for is not declared in the suite file.

## Things you can try:
- List the declared environments:
~~~
$ gauntlet list
~~~

- Check for typos in the environment name
- Patterns are supported, so a glob can select several at once:
~~~
$ gauntlet run -e 'py3*'
~~~`,
	}

	runtimeNotAvailableIssue = &Issue{
		id: RuntimeNotAvailableId,
		mdMsg: `
# Runtime not available!

The requested runtime is not available on this system.

## Available runtimes:
- **native**: uses your system's default shell (bash, sh, powershell, ...)
- **virtual**: uses the built-in POSIX shell interpreter
- **container**: runs commands inside a Docker/Podman container

## Things you can try:
- Change the runtime for the environment:
~~~cue
envs: [
  {
    name: "unit"
    runtime: {kind: "virtual"}
    commands: ["pytest"]
  }
]
~~~

- Or change the default in your config file:
~~~cue
default_runtime: "native"
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

An environment wants the 'container' runtime but no container engine is
available.

## Supported container engines:
- **Podman** (recommended for rootless containers)
- **Docker**

## Things you can try:
- Install Podman:
  - Linux: ` + "`sudo apt install podman`" + ` or ` + "`sudo dnf install podman`" + `
  - macOS: ` + "`brew install podman`" + `
  - Windows: Download from https://podman.io

- Install Docker:
  - https://docs.docker.com/get-docker/

- Switch the environment to a different runtime:
~~~cue
runtime: {kind: "native"}
~~~

- Configure your preferred engine in ~/.config/gauntlet/config.cue:
~~~cue
container_engine: "podman"  // or "docker"
~~~`,
	}

	containerfileNotFoundIssue = &Issue{
		id: ContainerfileNotFoundId,
		mdMsg: `
# Containerfile not found!

A container environment needs an image, a containerfile, or a Containerfile
(or Dockerfile) next to the suite file. None was found.

## Things you can try:
- Create a Containerfile in the same directory as your suite file:
~~~dockerfile
FROM alpine:latest
RUN apk add --no-cache bash coreutils
WORKDIR /workspace
~~~

- Or name a containerfile in the environment:
~~~cue
runtime: {
  kind: "container"
  containerfile: "ci/Containerfile.tests"
}
~~~

- Or use a pre-built image:
~~~cue
runtime: {
  kind: "container"
  image: "python:3.12-slim"
}
~~~`,
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# Command failed!

A command in the environment's list exited with a non-zero status.

## Common causes:
- Test failures (the usual case -- read the output above)
- Command not found in PATH
- Permission denied
- Missing dependencies in the environment

## Things you can try:
- Re-run just the failing environment with full output:
~~~
$ gauntlet run -e <env> --verbose
~~~

- Prefix the command with '-' in the suite file if its failure
  should not fail the environment:
~~~cue
commands: ["-flaky-cleanup.sh", "pytest"]
~~~`,
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Dependency installation failed!

The install phase for an environment did not complete.

## Common causes:
- A package name or version pin that does not resolve
- No network access to the package index
- The install command itself is missing from PATH

## Things you can try:
- Run the rendered install command by hand to see the full resolver output
- Override the install command for the environment:
~~~cue
install_command: "uv pip install {packages}"
~~~

- Skip installation entirely when the tools are preinstalled:
~~~cue
skip_install: true
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the gauntlet configuration file.

## Configuration file locations:
- Linux: ~/.config/gauntlet/config.cue
- macOS: ~/Library/Application Support/gauntlet/config.cue
- Windows: %APPDATA%\gauntlet\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ gauntlet config init
~~~

- Check the configuration syntax
- Remove the config file to use defaults:
~~~
$ rm ~/.config/gauntlet/config.cue
~~~

## Example configuration:
~~~cue
container_engine: "podman"
default_runtime: "native"
parallel: 4

ui: {
  color: "auto"
  verbose: false
}
~~~`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Your environments' depends_on entries form a cycle, so there is no order in
which they can run.

## Example of a cycle:
~~~cue
envs: [
  {name: "a", depends_on: ["b"], commands: ["true"]},
  {name: "b", depends_on: ["a"], commands: ["true"]},  // a -> b -> a
]
~~~

## Things you can try:
- Review the depends_on fields in your suite file
- Remove the circular dependency
- Use a linear dependency chain instead`,
	}

	shellNotFoundIssue = &Issue{
		id: ShellNotFoundId,
		mdMsg: `
# Shell not found!

Could not find a suitable shell for the 'native' runtime.

## Shells we look for:
- Linux/macOS: $SHELL, bash, sh
- Windows: pwsh, powershell, cmd

## Things you can try:
- Install bash or another POSIX shell
- Set the SHELL environment variable
- Use the 'virtual' runtime instead (built-in shell):
~~~cue
runtime: {kind: "virtual"}
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Common causes:
- The work area root is not writable
- A command's file is not executable
- Container engine requires elevated permissions

## Things you can try:
- Check file/directory permissions
- For containers, ensure you're in the docker/podman group:
~~~
$ sudo usermod -aG docker $USER
~~~

- Use rootless containers with Podman
- Run gauntlet from a directory you own`,
	}

	platformNotSupportedIssue = &Issue{
		id: PlatformNotSupportedId,
		mdMsg: `
# Platform not supported!

Every selected environment is filtered out on this operating system, so
there is nothing to run.

## Things you can try:
- Check the 'platforms' lists in your suite file
- Run the suite on a platform one of the environments declares
- Select a different environment:
~~~
$ gauntlet list
$ gauntlet run -e <env>
~~~`,
	}

	callbackStartFailedIssue = &Issue{
		id: CallbackStartFailedId,
		mdMsg: `
# Dang, we have run into an issue!

The host callback server failed to start, so container environments with
host_access cannot reach back into the host.

## Common causes:
- The configured port is already in use
- The configured host address is not local

## Things you can try:
- Let the server pick a free port (the default):
~~~cue
callback: {port: 0}
~~~

- Or disable host access for the environment:
~~~cue
runtime: {kind: "container", host_access: false}
~~~`,
	}

	issues = map[Id]*Issue{
		suiteNotFoundIssue.Id():           suiteNotFoundIssue,
		suiteParseErrorIssue.Id():         suiteParseErrorIssue,
		envNotFoundIssue.Id():             envNotFoundIssue,
		runtimeNotAvailableIssue.Id():     runtimeNotAvailableIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		containerfileNotFoundIssue.Id():   containerfileNotFoundIssue,
		commandFailedIssue.Id():           commandFailedIssue,
		installFailedIssue.Id():           installFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		dependencyCycleIssue.Id():         dependencyCycleIssue,
		shellNotFoundIssue.Id():           shellNotFoundIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
		platformNotSupportedIssue.Id():    platformNotSupportedIssue,
		callbackStartFailedIssue.Id():     callbackStartFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
