package elastic_search

import (
	"fmt"

	"go.uber.org/zap"
)

// ElasticLogger sends the elastic client trace to the debug log.
type ElasticLogger struct{}

func (l ElasticLogger) Printf(format string, v ...interface{}) {
	zap.L().Debug(fmt.Sprintf(format, v...))
}
