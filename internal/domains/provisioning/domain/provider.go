package domain

// Provider enumerates the carriers an eSIM can be provisioned for.
type Provider string

const (
	ProviderMPT     Provider = "mpt"
	ProviderATOM    Provider = "atom"
	ProviderOoredoo Provider = "ooredoo"
	ProviderMytel   Provider = "mytel"
)

// Providers lists every supported carrier in display order.
func Providers() []Provider {
	return []Provider{ProviderMPT, ProviderATOM, ProviderOoredoo, ProviderMytel}
}

func isValidProvider(provider Provider) bool {
	switch provider {
	case ProviderMPT, ProviderATOM, ProviderOoredoo, ProviderMytel:
		return true
	default:
		return false
	}
}

// DeviceType enumerates the platforms the compatibility check understands.
type DeviceType string

const (
	DeviceIOS     DeviceType = "ios"
	DeviceAndroid DeviceType = "android"
)

func isValidDeviceType(deviceType DeviceType) bool {
	switch deviceType {
	case DeviceIOS, DeviceAndroid:
		return true
	default:
		return false
	}
}

// DeviceInfo carries the fields the compatibility check requires.
type DeviceInfo struct {
	Type      DeviceType
	Model     string
	OSVersion string
}

// Complete reports whether every compatibility-check field is filled in.
func (d DeviceInfo) Complete() bool {
	return isValidDeviceType(d.Type) && d.Model != "" && d.OSVersion != ""
}
