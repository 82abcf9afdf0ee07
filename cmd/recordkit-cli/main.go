package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/innovationimperial/go-recordkit/pkg/catalog"
	"github.com/innovationimperial/go-recordkit/pkg/schema"
	"github.com/innovationimperial/go-recordkit/pkg/session"
	"github.com/innovationimperial/go-recordkit/pkg/submit"
	"github.com/innovationimperial/go-recordkit/pkg/tui"
)

func main() {
	schemaID := flag.String("schema", "", "schema id from the builtin catalog")
	schemaFile := flag.String("schema-file", "", "path to a schema declaration (JSON or YAML)")
	output := flag.String("output", "", "output file for the submitted record (stdout if empty)")
	list := flag.Bool("list", false, "list the builtin schema ids and exit")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *list {
		ids, err := catalog.IDs()
		if err != nil {
			log.Fatalf("load catalog: %v", err)
		}
		fmt.Println(strings.Join(ids, "\n"))
		return
	}

	s, err := resolveSchema(*schemaID, *schemaFile)
	if err != nil {
		log.Fatalf("resolve schema: %v", err)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatalf("init logger: %v", err)
		}
		defer logger.Sync()
	}

	sess, err := session.New(s,
		session.WithPersister(jsonPersister(*output)),
		session.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("open session: %v", err)
	}

	runner := tui.NewRunner()
	if err := runner.Run(context.Background(), sess); err != nil {
		var verr *submit.ValidationError
		switch {
		case errors.Is(err, tui.ErrAborted):
			fmt.Fprintln(os.Stderr, "aborted")
			os.Exit(130)
		case errors.As(err, &verr):
			for field, message := range verr.Fields {
				fmt.Fprintf(os.Stderr, "%s: %s\n", field, message)
			}
			os.Exit(1)
		default:
			log.Fatalf("record entry failed: %v", err)
		}
	}
}

func resolveSchema(id, path string) (schema.RecordSchema, error) {
	switch {
	case id != "" && path != "":
		return schema.RecordSchema{}, errors.New("use either -schema or -schema-file, not both")
	case id != "":
		return catalog.Schema(id)
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return schema.RecordSchema{}, err
		}
		return schema.Parse(data, path)
	default:
		return schema.RecordSchema{}, errors.New("a schema is required; try -list")
	}
}

// jsonPersister appends each submitted record to the output file as a JSON
// line, or prints to stdout when no file is given.
func jsonPersister(path string) submit.Persister {
	return submit.PersisterFunc(func(ctx context.Context, schemaID string, rec map[string]any) error {
		payload := map[string]any{"schema": schemaID, "record": rec}
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if path == "" {
			_, err = fmt.Println(string(data))
			return err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = f.Write(append(data, '\n'))
		return err
	})
}
