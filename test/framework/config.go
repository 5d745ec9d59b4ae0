package framework

func defaultConfig() *Configs {
	return &Configs{
		WorkerCount:   2,
		WorkerCommand: "sleep",
		WorkerArgs:    []string{"300"},
	}
}

type Configs struct {
	WorkerCount   int
	WorkerCommand string
	WorkerArgs    []string
	OutputDir     string
}

type Config func(*Configs)

func WithWorkerCount(v int) Config {
	return func(cfgs *Configs) {
		cfgs.WorkerCount = v
	}
}

// WithWorkerCommand sets the program spawned as monitored workers.
func WithWorkerCommand(command string, args ...string) Config {
	return func(cfgs *Configs) {
		cfgs.WorkerCommand = command
		cfgs.WorkerArgs = args
	}
}

// WithOutputDir sets where reports are written. Empty means a fresh
// temporary directory removed on TearDown.
func WithOutputDir(s string) Config {
	return func(cfgs *Configs) {
		cfgs.OutputDir = s
	}
}
