package timeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iammorganparry/timeline/internal/models"
)

// MinYear is the earliest year a timeline may start in (4000 BC).
const MinYear = -4000

// ParseYear converts player input plus era into a signed year and checks it
// lies within [MinYear, now.Year()]. An empty era means AD.
func ParseYear(input string, era models.Era, now time.Time) (int, error) {
	if era == "" {
		era = models.EraAD
	}
	if !era.IsValid() {
		return 0, &ValidationError{Message: fmt.Sprintf("Unknown era %q, use AD or BC.", era)}
	}

	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n <= 0 {
		return 0, &ValidationError{Message: "Please enter a valid positive year."}
	}

	year := n
	if era == models.EraBC {
		year = -n
	}

	if year < MinYear || year > now.Year() {
		return 0, &ValidationError{
			Message: fmt.Sprintf("Please enter a year between %s and %s.",
				models.FormatSignedYear(MinYear), models.FormatSignedYear(now.Year())),
		}
	}
	return year, nil
}
