package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rxledger/statements/internal/api/dto"
	"github.com/rxledger/statements/internal/service"
	"github.com/rxledger/statements/internal/types"
)

// ProcessPending runs one processing pass and prints its outcome
func ProcessPending() error {
	env, err := newScriptEnv(true)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := context.WithTimeout(context.Background(), env.cfg.Statement.RunTimeout())
	defer cancel()

	processor := service.NewStatementProcessor(env.params, service.NewStatementGenerator(env.params))
	resp, err := processor.ProcessPending(ctx)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

// SendStatement emails the latest statement of TARGET_TYPE/TARGET_ID
func SendStatement() error {
	target, err := dto.ParseStatementTarget(os.Getenv("TARGET_TYPE"), os.Getenv("TARGET_ID"))
	if err != nil {
		return err
	}

	env, err := newScriptEnv(true)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := types.SetUserID(context.Background(), "send-statement")
	resp, err := service.NewStatementDispatchService(env.params).SendLatest(ctx, target.ToTarget())
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
