package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/user"
	"github.com/trezcool/masomo-obe/storage/database"
	sqlxrepos "github.com/trezcool/masomo-obe/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(err)
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db,
		usrSvc:   user.NewService(sqlxrepos.NewUserRepository(db)),
		validate: validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if !errors.Is(err, errHelp) {
			logger.Printf("\nerror: %s\n", core.TranslateValidation(err, translator))
		}
		os.Exit(1)
	}
}
