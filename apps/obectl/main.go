// Command obectl is the teacher's command line client of the OBE API: it logs in,
// edits outcome mappings, keeps assessment weights at 100% and enters grades.
package main

import (
	"log"
	"os"

	"github.com/trezcool/masomo-obe/core"
	logsvc "github.com/trezcool/masomo-obe/services/logger"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "OBECTL : ", log.LstdFlags|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	err := newRootCmd(conf, logger).Execute()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
