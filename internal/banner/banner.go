package banner

import (
	"fmt"
	"io"
	"strings"
)

const banner = `
     _                     _                    
  __| |_ __ ___  _ __  ___| |__   __ _ _ __ ___ 
 / _' | '__/ _ \| '_ \/ __| '_ \ / _' | '__/ _ \
| (_| | | | (_) | |_) \__ \ | | | (_| | | |  __/
 \__,_|_|  \___/| .__/|___/_| |_|\__,_|_|  \___|
                |_|                             
`

type StartupInfo struct {
	Version  string
	Addr     string
	LogLevel string
	DB       string
	Storage  string
}

func PrintBanner(w io.Writer, info StartupInfo) {
	fmt.Fprint(w, banner)
	fmt.Fprintf(w, "                                 v%s\n\n", info.Version)

	width := 50
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", width))
	fmt.Fprintf(w, "  → Address:   http://%s\n", formatAddr(info.Addr))
	fmt.Fprintf(w, "  → Log Level: %s\n", info.LogLevel)
	fmt.Fprintf(w, "  → Metadata:  %s\n", info.DB)
	fmt.Fprintf(w, "  → Storage:   %s\n", info.Storage)
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", width))
	fmt.Fprintln(w)
}

func formatAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
