package model

// ConsultationFee 是单个科室的挂号费描述。
type ConsultationFee struct {
	Department string `json:"department"`
	Fee        string `json:"fee"`
}

// HospitalProfile 描述一家医院的静态资料，加载后不可变，按指针共享。
type HospitalProfile struct {
	HospitalID       string            `json:"hospitalId"`
	HospitalName     string            `json:"hospitalName"`
	Departments      []string          `json:"departments"`
	ConsultationFees []ConsultationFee `json:"consultationFees"`
	Timings          string            `json:"timings"`
	EmergencyContact string            `json:"emergencyContact"`
	Facilities       []string          `json:"facilities"`
	Address          string            `json:"address,omitempty"`
	Email            string            `json:"email,omitempty"`
}

// HasDepartment 判断科室是否属于本院。
func (p *HospitalProfile) HasDepartment(name string) bool {
	for _, d := range p.Departments {
		if d == name {
			return true
		}
	}
	return false
}

// FeeFor 返回科室的挂号费描述。
func (p *HospitalProfile) FeeFor(department string) (string, bool) {
	for _, f := range p.ConsultationFees {
		if f.Department == department {
			return f.Fee, true
		}
	}
	return "", false
}
