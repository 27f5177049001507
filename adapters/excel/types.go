package excel

import "groupcoh/domain/signal"

// GroupData is one channel group read from a file
type GroupData struct {
	Subjects []string     // column headers, or generated names
	Group    signal.Group // subjects x samples
	Source   string       // file the data came from
}
