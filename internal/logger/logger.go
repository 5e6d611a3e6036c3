package logger

import (
	"go.uber.org/zap"
)

// InitLogger 初始化全局 zap 日志；debug 模式下输出开发格式
func InitLogger(debug bool) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(l)
}
