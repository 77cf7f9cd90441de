// conf/defaults.go default values for settings
package conf

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	mb = 1024 * 1024
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Auralis")

	// Chunk timing, immutable at runtime. Chunks are 15 s long on a 10 s
	// stride; the 5 s overlap stays in each cached payload (sessions emit
	// only the stride) and the 5 s context feeds stateful DSP.
	viper.SetDefault("chunk.duration", 15.0)
	viper.SetDefault("chunk.interval", 10.0)
	viper.SetDefault("chunk.overlapduration", 5.0)
	viper.SetDefault("chunk.contextduration", 5.0)

	viper.SetDefault("streaming.maxconcurrentstreams", 4)
	viper.SetDefault("streaming.sendqueuemaxsize", 8)
	viper.SetDefault("streaming.xfadems", 200)
	viper.SetDefault("streaming.maxlevelchangedb", 1.5)
	viper.SetDefault("streaming.framebytes", 32768)
	viper.SetDefault("streaming.bindaddress", "127.0.0.1:8765")
	viper.SetDefault("streaming.maxmessagebytes", 64*1024)
	viper.SetDefault("streaming.messagespersecond", 10)

	viper.SetDefault("cache.dir", filepath.Join(os.TempDir(), "auralis_chunks"))
	viper.SetDefault("cache.tier1bytes", 18*mb)
	viper.SetDefault("cache.tier2bytes", (36+45)*mb)
	viper.SetDefault("cache.wavsubtype", "PCM_16")

	viper.SetDefault("worker.checkintervals", 1)
	viper.SetDefault("worker.priority0timeout", 20)
	viper.SetDefault("worker.priority1timeout", 30)
	viper.SetDefault("worker.priority2timeout", 60)
	viper.SetDefault("worker.priority3timeout", 90)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.checkintervals", 5)

	viper.SetDefault("library.dbpath", "auralis_library.db")
}
