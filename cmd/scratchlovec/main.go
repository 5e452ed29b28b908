// Command scratchlovec exercises the compiler against fixture
// projects: a small hand-rolled subcommand dispatcher, not a
// cobra/viper CLI, since this module's ambient stack never reaches
// past the standard library for flag parsing (see DESIGN.md).
package main

import (
	"fmt"
	"log"
	"os"

	"scratchlove/internal/slcompile"
	"scratchlove/internal/slproject"
	"scratchlove/internal/slruntime"
)

const version = "0.1.0"

// commandAliases gives compile/run short-form aliases for quick use.
var commandAliases = map[string]string{
	"c": "compile",
	"r": "run",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Println("scratchlovec " + version)
	case "compile":
		if err := compileCommand(args[1:]); err != nil {
			log.Fatalf("scratchlovec: %v", err)
		}
	case "run":
		if err := runCommand(args[1:]); err != nil {
			log.Fatalf("scratchlovec: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "scratchlovec: unknown command %q\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`scratchlovec compiles and runs fixture Scratch projects against the slcompile driver.

Usage:
  scratchlovec compile <fixture.json> <entryBlockID> [spriteName]
  scratchlovec run     <fixture.json> <entryBlockID> [spriteName]

compile loads and compiles one entry point and reports its hat opcode,
warp mode, and the runtime helpers its emitted code calls.

run does everything compile does, then calls the compiled entry
function once against an in-memory FakeScheduler/FakeThread/FakeTarget
(internal/slruntime) and prints the resulting target state.

spriteName defaults to the first non-stage target in the fixture.`)
}

// loadEntry reads and compiles fixturePath's named entry point on
// spriteName (or the first sprite, if empty), returning the driver,
// project target, and compiled artifact together; run and compile both
// use only the artifact.
func loadEntry(fixturePath, entryBlockID, spriteName string) (*slcompile.Driver, *slproject.Target, *slcompile.Artifact, error) {
	data, err := os.ReadFile(fixturePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading fixture: %w", err)
	}
	proj, err := slproject.LoadFixture(data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading fixture: %w", err)
	}

	target, err := resolveTarget(proj, spriteName)
	if err != nil {
		return nil, nil, nil, err
	}

	driver := slcompile.New(proj, log.New(os.Stderr, "scratchlovec: ", 0))
	artifact, err := driver.Compile(target, entryBlockID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compiling %s: %w", entryBlockID, err)
	}
	return driver, target, artifact, nil
}

func resolveTarget(proj *slproject.Project, spriteName string) (*slproject.Target, error) {
	if spriteName == "" {
		if len(proj.Sprites) == 0 {
			return nil, fmt.Errorf("fixture has no sprites")
		}
		return proj.Sprites[0], nil
	}
	for _, t := range proj.Targets() {
		if t.Name == spriteName {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no target named %q in fixture", spriteName)
}

func compileCommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: scratchlovec compile <fixture.json> <entryBlockID> [spriteName]")
	}
	sprite := ""
	if len(args) > 2 {
		sprite = args[2]
	}
	_, _, artifact, err := loadEntry(args[0], args[1], sprite)
	if err != nil {
		return err
	}
	fmt.Printf("compiled %s: hat=%s warp=%v procedures=%d helpers=%d\n",
		args[1], artifact.HatOpcode, artifact.Warp, len(artifact.Procedures), len(artifact.UsedHelpers))
	return nil
}

func runCommand(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: scratchlovec run <fixture.json> <entryBlockID> [spriteName]")
	}
	sprite := ""
	if len(args) > 2 {
		sprite = args[2]
	}
	_, _, artifact, err := loadEntry(args[0], args[1], sprite)
	if err != nil {
		return err
	}

	rt := slruntime.NewFakeScheduler()
	tgt := slruntime.NewFakeTarget()
	th := &slruntime.FakeThread{}

	if _, err := artifact.Entry(rt, tgt, th); err != nil {
		return fmt.Errorf("running %s: %w", args[1], err)
	}

	fmt.Printf("ran %s: x=%.4g y=%.4g direction=%.4g say=%q think=%q yields=%v stopped=%v\n",
		args[1], tgt.X(), tgt.Y(), tgt.Direction(), tgt.SayText, tgt.ThinkText, th.Yields, th.Stopped)
	return nil
}
