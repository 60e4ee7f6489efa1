// Package hospital 提供医院静态资料的加载，以及写入系统提示词的 JSON 视图。
package hospital

import (
	"bytes"
	"encoding/json"
	"strings"

	"medidesk-go/internal/config"
	"medidesk-go/internal/model"
)

// Demo 返回内置的演示医院资料。每次调用都返回新的实例。
func Demo() *model.HospitalProfile {
	return &model.HospitalProfile{
		HospitalID:   "BT hospital",
		HospitalName: "BT Medical Center",
		Departments: []string{
			"General Medicine",
			"Pediatrics",
			"Cardiology",
			"Orthopedics",
			"Gynecology",
			"Dermatology",
			"ENT (Ear, Nose, Throat)",
			"Neurology",
			"Emergency",
		},
		ConsultationFees: []model.ConsultationFee{
			{Department: "General Medicine", Fee: "PKR 2000"},
			{Department: "Pediatrics", Fee: "PKR 2500"},
			{Department: "Cardiology", Fee: "PKR 3000"},
			{Department: "Orthopedics", Fee: "PKR 2800"},
			{Department: "Gynecology", Fee: "PKR 2500"},
			{Department: "Dermatology", Fee: "PKR 2200"},
			{Department: "ENT (Ear, Nose, Throat)", Fee: "PKR 2000"},
			{Department: "Neurology", Fee: "PKR 3500"},
			{Department: "Emergency", Fee: "Free (Emergency cases)"},
		},
		Timings:          "OPD: 9:00 AM - 5:00 PM (Mon-Sat), Emergency: 24/7",
		EmergencyContact: "+92-XXX-XXXXXXX",
		Facilities: []string{
			"24/7 Emergency Services",
			"In-house Laboratory",
			"Pharmacy",
			"ICU (Intensive Care Unit)",
			"X-Ray & Ultrasound",
			"Operation Theater",
			"Ambulance Service",
			"Blood Bank",
		},
		Address: "123 Medical Street, City Center, Pakistan",
		Email:   "info@demomedical.com",
	}
}

// FromConfig 根据配置构建医院资料；未配置 hospital_id 时返回演示资料。
// 配置中缺省的字段沿用演示资料的值。
func FromConfig(cfg config.HospitalConfig) *model.HospitalProfile {
	p := Demo()
	if cfg.HospitalID == "" {
		return p
	}
	p.HospitalID = cfg.HospitalID
	if cfg.HospitalName != "" {
		p.HospitalName = cfg.HospitalName
	}
	if len(cfg.Departments) > 0 {
		p.Departments = append([]string(nil), cfg.Departments...)
	}
	if len(cfg.ConsultationFees) > 0 {
		fees := make([]model.ConsultationFee, 0, len(cfg.ConsultationFees))
		for _, e := range cfg.ConsultationFees {
			fees = append(fees, model.ConsultationFee{Department: e.Department, Fee: e.Fee})
		}
		p.ConsultationFees = fees
	}
	if cfg.Timings != "" {
		p.Timings = cfg.Timings
	}
	if cfg.EmergencyContact != "" {
		p.EmergencyContact = cfg.EmergencyContact
	}
	if len(cfg.Facilities) > 0 {
		p.Facilities = append([]string(nil), cfg.Facilities...)
	}
	if cfg.Address != "" {
		p.Address = cfg.Address
	}
	if cfg.Email != "" {
		p.Email = cfg.Email
	}
	return p
}

// promptView 是提示词中的医院数据结构，费用以 科室→费用 的对象形式呈现。
type promptView struct {
	HospitalID       string            `json:"hospitalId"`
	HospitalName     string            `json:"hospitalName"`
	Departments      []string          `json:"departments"`
	ConsultationFees map[string]string `json:"consultationFees"`
	Timings          string            `json:"timings"`
	EmergencyContact string            `json:"emergencyContact"`
	Facilities       []string          `json:"facilities"`
	Address          string            `json:"address,omitempty"`
	Email            string            `json:"email,omitempty"`
}

// PromptJSON 以两个空格缩进的 JSON 输出医院资料，供系统提示词使用。
func PromptJSON(p *model.HospitalProfile) string {
	fees := make(map[string]string, len(p.ConsultationFees))
	for _, f := range p.ConsultationFees {
		fees[f.Department] = f.Fee
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(promptView{
		HospitalID:       p.HospitalID,
		HospitalName:     p.HospitalName,
		Departments:      p.Departments,
		ConsultationFees: fees,
		Timings:          p.Timings,
		EmergencyContact: p.EmergencyContact,
		Facilities:       p.Facilities,
		Address:          p.Address,
		Email:            p.Email,
	})
	if err != nil {
		// 结构中只有字符串字段，不会失败
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}
