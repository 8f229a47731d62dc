package fleet

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseETAMinutes reads the leading integer of an ETA such as "8 mins".
// Strings without one, like "Arrived", are not minute ETAs.
func ParseETAMinutes(eta string) (int, bool) {
	fields := strings.Fields(eta)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func FormatETAMinutes(m int) string {
	return fmt.Sprintf("%d mins", m)
}

// DisplayETA is what the admin table shows in the ETA column.
func DisplayETA(eta string) string {
	if eta == "" {
		return "Available"
	}
	return eta
}
