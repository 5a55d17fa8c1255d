package banner

import (
	"fmt"

	"chatsync/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗███████╗██╗   ██╗███╗   ██╗ ██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
██║     ███████║███████║   ██║   ███████╗ ╚████╔╝ ██╔██╗ ██║██║
██║     ██╔══██║██╔══██║   ██║   ╚════██║  ╚██╔╝  ██║╚██╗██║██║
╚██████╗██║  ██║██║  ██║   ██║   ███████║   ██║   ██║ ╚████║╚██████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, addr, store path, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	var addr = eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	var dbPath = eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Storage.DBPath
	}
	var src = eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Debug listen: %s\n", addr)
	fmt.Printf("Store path:   %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:      %s\n", version)
	}
	fmt.Printf("Config:       %s\n", src)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET /healthz                 - liveness")
	fmt.Println("GET /readyz                  - store readiness")
	fmt.Println("GET /metrics                 - prometheus metrics")
	fmt.Println("GET /v1/state/global         - session-wide state snapshot")
	fmt.Println("GET /v1/state/channels       - active channel states")
	fmt.Println("GET /v1/state/channels/{cid} - one channel state snapshot")
	fmt.Println("GET /v1/store/stats          - offline cache statistics")

	fmt.Println("\n== Session ====================================================")
	if eff.Config != nil && eff.Config.Session.UserID != "" {
		fmt.Printf("- User: %s\n", eff.Config.Session.UserID)
	} else {
		fmt.Println("- User: MISSING (set --user, CHATSYNC_USER_ID, or session.user_id)")
	}
	if eff.Config != nil && eff.Config.Session.EventsFile != "" {
		fmt.Printf("- Event feed: %s\n", eff.Config.Session.EventsFile)
	} else {
		fmt.Println("- Event feed: none (dispatcher idles until events arrive)")
	}

	retEnabled := false
	retInfo := ""
	if eff.Config != nil {
		retEnabled = eff.Config.Retention.Enabled
		if retEnabled {
			if eff.Config.Retention.Cron != "" {
				retInfo = "cron=" + eff.Config.Retention.Cron
			}
			if d := eff.Config.Retention.MaxAge.Duration(); d > 0 {
				if retInfo != "" {
					retInfo += " "
				}
				retInfo += "max_age=" + d.String()
			}
		}
	}
	if retEnabled {
		if retInfo != "" {
			fmt.Printf("- Retention: enabled (%s)\n", retInfo)
		} else {
			fmt.Println("- Retention: enabled")
		}
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
