package main

import (
	"eprocure-backend/cmd/tenderscout/commands"
	"eprocure-backend/lib/serviceutil"
)

func main() {
	err := commands.ExecuteContext(serviceutil.SignalContext())
	if err != nil {
		serviceutil.Fatal("tenderscout failed", err)
	}
}
