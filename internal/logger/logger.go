package logger

import (
	"sync"

	"go.uber.org/zap"
)

var once sync.Once

// Init 初始化全局 zap logger，调用方直接用 zap.L()。
// debug 为 true 时输出开发格式（彩色、human readable）。
func Init(debug bool) {
	once.Do(func() {
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
	})
}
