package citystore

// City is one entry of the city list file: {"name": "Almaty"}.
type City struct {
	Name string `json:"name" validate:"required,max=30"`
}

// cityList wraps the slice so the validator can dive into the entries.
type cityList struct {
	Cities []City `validate:"dive"`
}

func cloneCities(in []City) []City {
	if in == nil {
		return nil
	}
	out := make([]City, len(in))
	copy(out, in)
	return out
}

func containsCity(list []City, name string) int {
	for i, c := range list {
		if c.Name == name {
			return i
		}
	}
	return -1
}
