// Package logger adapts popular logging libraries to arbordb.Logger.
//
// The standard library's slog.Logger already implements arbordb.Logger and
// needs no adapter.
//
// Example with zap:
//
//	zapLogger, _ := zap.NewProduction()
//	db, err := arbordb.Open("users.db",
//	    arbordb.WithRecordSize(record.Size),
//	    arbordb.WithLogger(logger.NewZap(zapLogger)),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
package logger
