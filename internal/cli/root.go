package cli

import (
	"context"
	"fmt"
)

func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "init":
		return runInit(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "add":
		return runAdd(args[1:])
	case "populate":
		return runPopulate(args[1:])
	case "remove":
		return runRemove(args[1:])
	case "move":
		return runMove(args[1:])
	case "list":
		return runList(args[1:])
	case "set":
		return runSet(args[1:])
	case "apply-all":
		return runApplyAll(args[1:])
	case "output":
		return runOutput(args[1:])
	case "preset":
		return runPreset(args[1:])
	case "save-preset":
		return runSavePreset(args[1:])
	case "load-preset":
		return runLoadPreset(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "render":
		return runRender(ctx, args[1:])
	case "schedule":
		return runSchedule(ctx, args[1:])
	case "worker":
		return runWorker(ctx, args[1:])
	case "pause":
		return runPause(args[1:])
	case "resume":
		return runResume(args[1:])
	case "status":
		return runStatus(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("rendercue: queue scene renders and run them unattended")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  rendercue init --document scenes.json")
	fmt.Println("  rendercue populate")
	fmt.Println("  rendercue render")
	fmt.Println()
	fmt.Println("Queue Commands:")
	fmt.Println("  init         create workspace config + run environment checks")
	fmt.Println("  doctor       run renderer, document and filesystem checks")
	fmt.Println("  add          queue a job for one or more scenes")
	fmt.Println("  populate     queue every scene with a camera that is not queued yet")
	fmt.Println("  remove       remove a job")
	fmt.Println("  move         move a job up or down")
	fmt.Println("  list         show the queue and active overrides")
	fmt.Println("  set          set, enable or disable one override on a job")
	fmt.Println("  apply-all    copy one override from a job to every job")
	fmt.Println("  output       choose where renders are written")
	fmt.Println("  preset       apply the draft or production quick preset")
	fmt.Println("  save-preset  save the queue to a preset file")
	fmt.Println("  load-preset  replace the queue with a preset file")
	fmt.Println("  validate     check the queue against the document")
	fmt.Println()
	fmt.Println("Run Commands:")
	fmt.Println("  render       render the queue in a background worker with a live dashboard")
	fmt.Println("  schedule     render the queue on a cron schedule")
	fmt.Println("  pause        pause the running render after its current frame")
	fmt.Println("  resume       resume a paused render")
	fmt.Println("  status       show the state of the latest (or given) run")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Job indexes are 1-based, as printed by list")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - The workspace file is ./rendercue.json unless --config or RENDERCUE_CONFIG is set")
}
