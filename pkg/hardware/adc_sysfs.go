package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IIODir is where the AM335x touchscreen/ADC driver exposes its channels.
var IIODir = "/sys/bus/iio/devices/iio:device0"

// BeagleBone header pins wired to the on-chip ADC.
var ainByHeaderPin = map[string]int{
	"P9_39": 0,
	"P9_40": 1,
	"P9_37": 2,
	"P9_38": 3,
	"P9_33": 4,
	"P9_36": 5,
	"P9_35": 6,
}

// AINChannel maps a header pin name ("P9_39") or an ADC name ("AIN0") to its
// channel number.
func AINChannel(name string) (int, error) {
	if ch, ok := ainByHeaderPin[strings.ToUpper(name)]; ok {
		return ch, nil
	}
	upper := strings.ToUpper(name)
	if strings.HasPrefix(upper, "AIN") {
		ch, err := strconv.Atoi(upper[3:])
		if err == nil && ch >= 0 && ch <= 6 {
			return ch, nil
		}
	}
	return 0, errors.Errorf("%q is not an analog input", name)
}

type sysfsAnalog struct {
	path string
}

// OpenSysfsAnalog opens an ADC channel through the IIO sysfs interface.
func OpenSysfsAnalog(name string) (AnalogIn, error) {
	ch, err := AINChannel(name)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(IIODir, fmt.Sprintf("in_voltage%d_raw", ch))
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "ADC not available (is the BB-ADC overlay loaded?)")
	}
	return &sysfsAnalog{path: path}, nil
}

// Read returns the raw 12-bit count.  The driver returns EAGAIN/EBUSY when a
// conversion is already in flight; that surfaces here as an error and the
// caller retries on its next cycle.
func (a *sysfsAnalog) Read() (int, error) {
	raw, err := os.ReadFile(a.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}
