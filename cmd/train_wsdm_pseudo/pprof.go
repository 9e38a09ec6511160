package main

import "runtime/pprof"
import "os"
import "os/signal"
import "syscall"

func init() {
	for _, arg := range os.Args {
		if arg == "-pgo" || arg == "--pgo" {
			// Create a channel to receive OS signals
			sigChan := make(chan os.Signal, 1)

			// Notify the channel on SIGINT and SIGTERM
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			f, err := os.Create("default.pgo")
			if err != nil {
				return
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return
			}

			// Collect profile data into default.pgo until interrupted
			go func() {
				<-sigChan
				pprof.StopCPUProfile()
				f.Close()
				os.Exit(130)
			}()
			return
		}
	}
}
