package service

import (
	"fmt"
	"strings"

	"medidesk-go/internal/hospital"
	"medidesk-go/internal/model"
)

// 访客可见的固定文案。
const (
	WelcomeText             = "Hi! I'm MediDesk, your AI front desk assistant. How can I help you today?"
	FallbackText            = "I'm not sure about that, but I can notify hospital staff to get back to you. Would you like to book an appointment?"
	AppointmentConfirmation = "Thank you! Your appointment request has been submitted. Our staff will contact you shortly."
	AppointmentSaveFailed   = "Failed to save data. Please try again."
)

// BuildSystemPrompt 生成前台助手的系统提示词，内嵌医院资料。
func BuildSystemPrompt(profile *model.HospitalProfile) string {
	var sys strings.Builder
	sys.WriteString("You are MediDesk, a professional hospital front-desk assistant AI.\n\n")
	sys.WriteString("STRICT RULES (YOU MUST FOLLOW THESE):\n")
	sys.WriteString("1. You do NOT provide medical advice, diagnosis, or treatment recommendations\n")
	sys.WriteString("2. You do NOT answer medical questions about symptoms, diseases, or medications\n")
	sys.WriteString("3. You ONLY answer questions using the hospital data provided below\n")
	sys.WriteString("4. You act ONLY as a front-desk receptionist helping with:\n")
	sys.WriteString("   - Appointment booking information\n")
	sys.WriteString("   - Hospital timings and contact details\n")
	sys.WriteString("   - Department information and doctor availability\n")
	sys.WriteString("   - Consultation fees\n")
	sys.WriteString("   - Hospital facilities and services\n")
	sys.WriteString("   - General administrative queries\n\n")
	sys.WriteString("5. If asked about medical conditions, symptoms, or treatment:\n")
	sys.WriteString("   - Politely decline and suggest booking an appointment with a doctor\n")
	sys.WriteString("   - Example: \"I cannot provide medical advice. I recommend booking an appointment with our [relevant department] for proper medical consultation.\"\n\n")
	sys.WriteString("6. If information is not in the hospital data below, respond with:\n")
	sys.WriteString(fmt.Sprintf("   \"%s\"\n\n", FallbackText))
	sys.WriteString("7. Be friendly, professional, and concise\n")
	sys.WriteString("8. Always prioritize patient safety by not giving medical information\n\n")
	sys.WriteString("HOSPITAL DATA:\n")
	sys.WriteString(hospital.PromptJSON(profile))
	sys.WriteString("\n\nRemember: You are a front-desk assistant, NOT a medical professional. ")
	sys.WriteString("Your role is to help patients with administrative tasks and direct them to appropriate medical staff.")
	return sys.String()
}

var medicalKeywords = []string{
	"symptom", "pain", "disease", "medication", "drug", "treatment",
	"diagnose", "diagnosis", "cure", "sick", "illness", "infection",
	"fever", "headache", "prescription", "medicine", "tablet", "injection",
}

// ContainsMedicalQuery 判断访客输入是否涉及医疗咨询（子串匹配，不区分大小写）。
func ContainsMedicalQuery(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range medicalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// MedicalQueryResponse 返回拒绝提供医疗建议的固定回复；department 为空时使用通用说法。
func MedicalQueryResponse(department string) string {
	if department == "" {
		department = "appropriate department"
	}
	return fmt.Sprintf("I cannot provide medical advice or diagnosis. For medical concerns, I recommend booking an appointment with our %s. Our qualified doctors will be able to help you properly. Would you like to book an appointment?", department)
}
