package postgresadapter

import (
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
)

// SystemClock is the default runtime clock. Location decides which calendar
// day "today" is; nil means UTC.
type SystemClock struct {
	Location *time.Location
}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (c SystemClock) Today() time.Time {
	location := c.Location
	if location == nil {
		location = time.UTC
	}
	return entities.CivilDate(time.Now().In(location))
}
